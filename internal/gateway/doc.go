// Package gateway 提供 WebSocket 驱动网关。
// 一条连接对应一路会话；入站 utterance / tool_call 帧提交给会话回合循环，
// 会话输出以 speak / error 帧写回。该包属于内部实现，不对外导出。
package gateway
