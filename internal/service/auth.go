package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/pkg/config"
	"github.com/isp-backoffice/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Claims 后台访问令牌, sub 为用户 ID
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// UserID 解析 sub
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid subject", ErrUnauthorized)
	}
	return uint(id), nil
}

// Token 登录结果
type Token struct {
	Value     string
	ExpiresAt time.Time
	User      *model.User
}

type AuthService struct {
	db  *gorm.DB
	cfg config.AuthConfig
	now func() time.Time
}

// Login 邮箱不存在、密码错误或账号停用统一返回 ErrUnauthorized
func (s *AuthService) Login(ctx context.Context, email, password string) (*Token, error) {
	db := s.db.WithContext(ctx)
	var u model.User
	err := db.Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: 邮箱或密码错误", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: 邮箱或密码错误", ErrUnauthorized)
	}
	if !u.Active {
		return nil, fmt.Errorf("%w: 账号已停用", ErrUnauthorized)
	}

	token, err := s.issueToken(&u)
	if err != nil {
		return nil, err
	}
	now := s.now()
	u.LastLoginAt = &now
	if err := db.Model(&u).Update("last_login_at", now).Error; err != nil {
		logger.Logger.Warn("更新最后登录时间失败", zap.Uint("user_id", u.ID), zap.Error(err))
	}
	return token, nil
}

func (s *AuthService) issueToken(u *model.User) (*Token, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.TokenTTL)
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, err
	}
	return &Token{Value: signed, ExpiresAt: expiresAt, User: u}, nil
}

// ValidateToken 校验签名、签发方与有效期
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithIssuer(s.cfg.Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token has expired", ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}
	return claims, nil
}

// Authenticate 校验令牌并确认用户仍处于启用状态
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	u, err := s.GetUser(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: 用户不存在", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, fmt.Errorf("%w: 账号已停用", ErrUnauthorized)
	}
	return u, nil
}

func (s *AuthService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*model.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, validationf("email 不能为空")
	}
	if len(req.Password) < 8 {
		return nil, validationf("密码至少 8 位")
	}
	role := req.Role
	if role == "" {
		role = model.RoleStaff
	}
	if role != model.RoleAdmin && role != model.RoleStaff {
		return nil, validationf("未知角色 %q", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Unscoped().Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, conflictf("用户 %s 已存在", email)
	}
	u := model.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Role:         role,
		Active:       true,
	}
	if err := db.Create(&u).Error; err != nil {
		return nil, err
	}
	logger.Logger.Info("后台用户已创建", zap.Uint("user_id", u.ID), zap.String("role", u.Role))
	return &u, nil
}

func (s *AuthService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := findByID(s.db.WithContext(ctx), &u, id, "user"); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *AuthService) GetAllUsers(ctx context.Context, page dto.PaginationRequest) (PageResult[model.User], error) {
	query := s.db.WithContext(ctx).Model(&model.User{})
	return paginate[model.User](query, Page{Page: page.Page, PageSize: page.PageSize}, "id asc")
}

// SetActive 停用后该用户已签发的令牌立即失效
func (s *AuthService) SetActive(ctx context.Context, id uint, active bool) (*model.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Active = active
	if err := s.db.WithContext(ctx).Model(u).Update("active", active).Error; err != nil {
		return nil, err
	}
	return u, nil
}
