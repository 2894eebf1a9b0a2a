package service

import "gorm.io/gorm"

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page 分页参数
type Page struct {
	Page     int
	PageSize int
}

// Normalize 修正非法的分页参数
func (p Page) Normalize() Page {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageResult 分页查询结果
type PageResult[T any] struct {
	Total int64
	Page  Page
	Items []T
}

// paginate 先查总数再查当前页
func paginate[T any](query *gorm.DB, p Page, order string) (PageResult[T], error) {
	p = p.Normalize()
	result := PageResult[T]{Page: p}
	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	if order == "" {
		order = "id desc"
	}
	if err := query.Offset(p.Offset()).Limit(p.PageSize).Order(order).Find(&result.Items).Error; err != nil {
		return result, err
	}
	return result, nil
}
