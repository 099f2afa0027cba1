// Package config 提供 intake 的配置管理功能。
//
// 支持从 YAML 文件和环境变量加载配置，
// 优先级为: 默认值 → YAML 文件 → 环境变量。
// 环境变量使用 INTAKE_ 前缀，嵌套字段以下划线连接，
// 例如 INTAKE_STORAGE_DATA_ROOT。
package config
