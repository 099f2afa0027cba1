/*
Package types 提供 intake 模块的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 record、store、tools、
session 等上层模块提供统一的类型契约。跨包共享的结构体、枚举和错误码
均定义于此，以避免循环依赖。

# 核心类型

  - RecordKind        — 记录类别（order / meal_log / fitness_goal / health_metric）
  - FieldSpec         — 单个字段的声明（名称、类型、哨兵值、描述）
  - Record            — 有序的规范化字段映射 + 创建时间 + 来源标记
  - Error / ErrorCode — 结构化错误体系（VALIDATION / STORAGE / ...）

# 主要能力

  - Record.MarshalJSON 保证持久化文档键序稳定（schema 顺序 → timestamp → 来源标记）
  - 错误工具链：CodeOf / IsValidation / IsStorage，供驱动端区分重问与道歉
*/
package types
