// Package dto 定义 API 请求与响应结构
//
// 请求结构带有 gin binding 校验标签, 由 handler 绑定后直接交给 service;
// 响应结构由 To*Response 函数从数据库模型转换而来, 不直接暴露 gorm 模型.
package dto
