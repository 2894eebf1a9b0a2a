package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/validator"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SOA 默认值 (秒)
const (
	defaultRefresh    = 10800
	defaultRetry      = 3600
	defaultExpire     = 604800
	defaultMinimumTTL = 3600
	defaultRecordTTL  = 3600
	minRecordTTL      = 60
)

type DnsService struct {
	db  *gorm.DB
	now func() time.Time
}

// nextSerial YYYYMMDDnn 格式; 同一天递增 nn, 新的一天从 00 开始, 永不回退
func nextSerial(current uint32, now time.Time) uint32 {
	y, m, d := now.Date()
	base := uint32(y*1000000 + int(m)*10000 + d*100)
	if current < base {
		return base
	}
	return current + 1
}

func (s *DnsService) GetAll(ctx context.Context, filter dto.DnsZoneFilter) (PageResult[model.DnsZone], error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&model.DnsZone{})
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Search != "" {
		query = query.Where("name LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	result, err := paginate[model.DnsZone](query, Page{Page: filter.Page, PageSize: filter.PageSize}, "name asc")
	if err != nil || len(result.Items) == 0 {
		return result, err
	}
	// 记录单独加载, Count 不能带 Preload
	ids := make([]uint, len(result.Items))
	for i, z := range result.Items {
		ids[i] = z.ID
	}
	var records []model.DnsRecord
	if err := db.Where("zone_id IN ?", ids).Order("name asc, type asc, id asc").Find(&records).Error; err != nil {
		return result, err
	}
	byZone := make(map[uint][]model.DnsRecord, len(ids))
	for _, r := range records {
		byZone[r.ZoneID] = append(byZone[r.ZoneID], r)
	}
	for i := range result.Items {
		result.Items[i].Records = byZone[result.Items[i].ID]
	}
	return result, nil
}

func (s *DnsService) GetByID(ctx context.Context, id uint) (*model.DnsZone, error) {
	return loadZone(s.db.WithContext(ctx), id, false)
}

func loadZone(db *gorm.DB, id uint, lock bool) (*model.DnsZone, error) {
	var z model.DnsZone
	q := db.Preload("Records", func(db *gorm.DB) *gorm.DB { return db.Order("name asc, type asc, id asc") })
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := findByID(q, &z, id, "dns zone"); err != nil {
		return nil, err
	}
	return &z, nil
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func (s *DnsService) Create(ctx context.Context, req dto.CreateDnsZoneRequest) (*model.DnsZone, error) {
	name := validator.NormalizeDomain(req.Name)
	if err := validator.ValidateDomainName(name); err != nil {
		return nil, validationf("%v", err)
	}
	primary := validator.NormalizeDomain(req.PrimaryNS)
	if err := validator.ValidateHostname(primary); err != nil {
		return nil, validationf("primaryNs %v", err)
	}

	var z *model.DnsZone
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireCustomer(tx, req.CustomerID); err != nil {
			return err
		}
		if req.DomainID != 0 {
			var d model.Domain
			if err := findByID(tx, &d, req.DomainID, "domain"); err != nil {
				return err
			}
			if d.CustomerID != req.CustomerID {
				return validationf("域名 %s 不属于客户 %d", d.Name, req.CustomerID)
			}
		}
		var count int64
		if err := tx.Unscoped().Model(&model.DnsZone{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflictf("DNS 区域 %s 已存在", name)
		}
		z = &model.DnsZone{
			Name:       name,
			CustomerID: req.CustomerID,
			DomainID:   req.DomainID,
			PrimaryNS:  primary,
			AdminEmail: strings.ToLower(req.AdminEmail),
			Serial:     nextSerial(0, s.now()),
			Refresh:    positiveOr(req.Refresh, defaultRefresh),
			Retry:      positiveOr(req.Retry, defaultRetry),
			Expire:     positiveOr(req.Expire, defaultExpire),
			MinimumTTL: positiveOr(req.MinimumTTL, defaultMinimumTTL),
		}
		return tx.Create(z).Error
	})
	if err != nil {
		return nil, err
	}
	return z, nil
}

// Update 修改 SOA 参数, 同时递增序列号
func (s *DnsService) Update(ctx context.Context, id uint, req dto.UpdateDnsZoneRequest) (*model.DnsZone, error) {
	var z *model.DnsZone
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if z, err = loadZone(tx, id, true); err != nil {
			return err
		}
		if req.PrimaryNS != nil {
			primary := validator.NormalizeDomain(*req.PrimaryNS)
			if err := validator.ValidateHostname(primary); err != nil {
				return validationf("primaryNs %v", err)
			}
			z.PrimaryNS = primary
		}
		if req.AdminEmail != nil {
			z.AdminEmail = strings.ToLower(*req.AdminEmail)
		}
		setInt(&z.Refresh, req.Refresh)
		setInt(&z.Retry, req.Retry)
		setInt(&z.Expire, req.Expire)
		setInt(&z.MinimumTTL, req.MinimumTTL)
		z.Serial = nextSerial(z.Serial, s.now())
		return tx.Model(z).
			Select("primary_ns", "admin_email", "refresh", "retry", "expire", "minimum_ttl", "serial", "updated_at").
			Updates(z).Error
	})
	if err != nil {
		return nil, err
	}
	return z, nil
}

func (s *DnsService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var z model.DnsZone
		if err := findByID(tx, &z, id, "dns zone"); err != nil {
			return err
		}
		if err := tx.Where("zone_id = ?", id).Delete(&model.DnsRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&z).Error
	})
}

func (s *DnsService) GetRecords(ctx context.Context, zoneID uint) ([]model.DnsRecord, error) {
	z, err := s.GetByID(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	return z.Records, nil
}

// relativeName 将名字转换为区域内的相对名, 根记为 "@".
// 以点结尾的是绝对名, 必须落在区域内; 其余按区域文件惯例视为相对名
func relativeName(name, zone string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	absolute := strings.HasSuffix(name, ".") && name != "."
	name = strings.TrimSuffix(name, ".")
	switch {
	case name == "" || name == "@" || name == zone:
		return "@", nil
	case strings.HasSuffix(name, "."+zone):
		return strings.TrimSuffix(name, "."+zone), nil
	case absolute:
		return "", validationf("%s. 不在区域 %s 内", name, zone)
	}
	return name, nil
}

// buildRecord 校验并规范化一条记录
func buildRecord(z *model.DnsZone, req dto.DnsRecordRequest) (*model.DnsRecord, error) {
	name, err := relativeName(req.Name, z.Name)
	if err != nil {
		return nil, err
	}
	r := &model.DnsRecord{
		ZoneID:  z.ID,
		Name:    name,
		Type:    strings.ToUpper(strings.TrimSpace(req.Type)),
		Content: strings.TrimSpace(req.Content),
		TTL:     req.TTL,
	}
	if !validator.IsRecordType(r.Type) {
		return nil, validationf("不支持的记录类型 %s", req.Type)
	}
	if err := validator.ValidateRecordName(r.Name); err != nil {
		return nil, validationf("%v", err)
	}
	switch r.Type {
	case model.RecordTypeCNAME, model.RecordTypeNS, model.RecordTypeMX:
		r.Content = validator.NormalizeDomain(r.Content)
	case model.RecordTypeSRV:
		r.Content = strings.ToLower(r.Content)
	}
	if err := validator.ValidateRecordContent(r.Type, r.Content); err != nil {
		return nil, validationf("%v", err)
	}
	if r.Type == model.RecordTypeCNAME && r.Name == "@" {
		return nil, validationf("区域根不能使用 CNAME")
	}
	if r.Type == model.RecordTypeMX || r.Type == model.RecordTypeSRV {
		if req.Priority == nil {
			return nil, validationf("%s 记录必须指定 priority", r.Type)
		}
		r.Priority = *req.Priority
	}
	if r.TTL == 0 {
		r.TTL = defaultRecordTTL
	}
	if r.TTL < minRecordTTL {
		return nil, validationf("TTL 不能小于 %d", minRecordTTL)
	}
	return r, nil
}

// checkCoexistence CNAME 不能与同名的其它记录共存, 也不允许完全重复的记录
func checkCoexistence(tx *gorm.DB, r *model.DnsRecord, excludeID uint) error {
	var siblings []model.DnsRecord
	q := tx.Where("zone_id = ? AND name = ?", r.ZoneID, r.Name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Find(&siblings).Error; err != nil {
		return err
	}
	for _, o := range siblings {
		if r.Type == model.RecordTypeCNAME || o.Type == model.RecordTypeCNAME {
			return conflictf("%s 已存在 %s 记录, CNAME 不能与其它记录共存", r.Name, o.Type)
		}
		if o.Type == r.Type && o.Content == r.Content {
			return conflictf("记录 %s %s %s 已存在", r.Name, r.Type, r.Content)
		}
	}
	return nil
}

// bumpSerial 任何记录变更都要递增区域序列号
func (s *DnsService) bumpSerial(tx *gorm.DB, z *model.DnsZone) error {
	z.Serial = nextSerial(z.Serial, s.now())
	return tx.Model(z).Select("serial", "updated_at").Updates(z).Error
}

func (s *DnsService) CreateRecord(ctx context.Context, zoneID uint, req dto.DnsRecordRequest) (*model.DnsRecord, error) {
	var r *model.DnsRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		z, err := loadZone(tx, zoneID, true)
		if err != nil {
			return err
		}
		if r, err = buildRecord(z, req); err != nil {
			return err
		}
		if err := checkCoexistence(tx, r, 0); err != nil {
			return err
		}
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		return s.bumpSerial(tx, z)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func findRecord(tx *gorm.DB, zoneID, id uint) (*model.DnsRecord, error) {
	var r model.DnsRecord
	if err := findByID(tx.Where("zone_id = ?", zoneID), &r, id, "dns record"); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *DnsService) UpdateRecord(ctx context.Context, zoneID, id uint, req dto.DnsRecordRequest) (*model.DnsRecord, error) {
	var r *model.DnsRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		z, err := loadZone(tx, zoneID, true)
		if err != nil {
			return err
		}
		existing, err := findRecord(tx, zoneID, id)
		if err != nil {
			return err
		}
		if r, err = buildRecord(z, req); err != nil {
			return err
		}
		if err := checkCoexistence(tx, r, id); err != nil {
			return err
		}
		r.Model = existing.Model
		if err := tx.Model(r).Select("name", "type", "content", "ttl", "priority", "updated_at").Updates(r).Error; err != nil {
			return err
		}
		return s.bumpSerial(tx, z)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *DnsService) DeleteRecord(ctx context.Context, zoneID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		z, err := loadZone(tx, zoneID, true)
		if err != nil {
			return err
		}
		r, err := findRecord(tx, zoneID, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(r).Error; err != nil {
			return err
		}
		return s.bumpSerial(tx, z)
	})
}

// ExportZone 生成 BIND 格式的区域文件
func (s *DnsService) ExportZone(ctx context.Context, zoneID uint) (string, error) {
	z, err := s.GetByID(ctx, zoneID)
	if err != nil {
		return "", err
	}
	return renderZone(z), nil
}

func fqdn(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}

// soaMailbox admin@example.com -> admin.example.com. , 本地部分的点需转义
func soaMailbox(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return fqdn(email)
	}
	return strings.ReplaceAll(local, ".", `\.`) + "." + fqdn(domain)
}

// quoteTXT 按 255 字节切分成 character-string, 转义引号和反斜杠, 不可打印字节写成 \DDD.
// 整体已加引号且内部没有引号和反斜杠时原样输出
func quoteTXT(content string) string {
	if len(content) > 1 && strings.HasPrefix(content, `"`) && strings.HasSuffix(content, `"`) &&
		!strings.ContainsAny(content[1:len(content)-1], `"\`) {
		return content
	}
	var parts []string
	for len(content) > 0 {
		n := min(len(content), 255)
		parts = append(parts, `"`+escapeTXT(content[:n])+`"`)
		content = content[n:]
	}
	return strings.Join(parts, " ")
}

func escapeTXT(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, "\\%03d", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func recordData(r *model.DnsRecord) string {
	switch r.Type {
	case model.RecordTypeCNAME, model.RecordTypeNS:
		return fqdn(r.Content)
	case model.RecordTypeMX:
		return strconv.Itoa(r.Priority) + " " + fqdn(r.Content)
	case model.RecordTypeSRV:
		fields := strings.Fields(r.Content)
		if len(fields) == 3 && fields[2] != "." {
			fields[2] = fqdn(fields[2])
		}
		return strconv.Itoa(r.Priority) + " " + strings.Join(fields, " ")
	case model.RecordTypeTXT:
		return quoteTXT(r.Content)
	}
	return r.Content
}

func renderZone(z *model.DnsZone) string {
	records := append([]model.DnsRecord(nil), z.Records...)
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Name != b.Name {
			// 根记录排在最前
			if a.Name == "@" || b.Name == "@" {
				return a.Name == "@"
			}
			return a.Name < b.Name
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Content < b.Content
	})

	var b strings.Builder
	fmt.Fprintf(&b, "$ORIGIN %s\n", fqdn(z.Name))
	fmt.Fprintf(&b, "$TTL %d\n", z.MinimumTTL)
	fmt.Fprintf(&b, "@\tIN\tSOA\t%s %s (\n", fqdn(z.PrimaryNS), soaMailbox(z.AdminEmail))
	fmt.Fprintf(&b, "\t\t%d\t; serial\n", z.Serial)
	fmt.Fprintf(&b, "\t\t%d\t; refresh\n", z.Refresh)
	fmt.Fprintf(&b, "\t\t%d\t; retry\n", z.Retry)
	fmt.Fprintf(&b, "\t\t%d\t; expire\n", z.Expire)
	fmt.Fprintf(&b, "\t\t%d )\t; minimum\n", z.MinimumTTL)
	for i := range records {
		r := &records[i]
		fmt.Fprintf(&b, "%s\t%d\tIN\t%s\t%s\n", r.Name, r.TTL, r.Type, recordData(r))
	}
	return b.String()
}
