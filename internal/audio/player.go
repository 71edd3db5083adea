package audio

import (
	"fmt"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

// Handle 一次循环播放的句柄，用于后续停止
type Handle interface{}

// Player 警报音播放器
// 报警监听线程通过它启动/停止循环播放，具体后端可替换
type Player interface {
	// PlayLoop 开始循环播放指定警报音，返回播放句柄
	PlayLoop(sound string) (Handle, error)
	// Stop 停止指定句柄对应的播放
	Stop(handle Handle) error
}

// ExecPlayer 基于系统播放命令的播放器实现
// 每次 PlayLoop 启动一个子进程循环播放，Stop 杀掉该进程
type ExecPlayer struct {
	command string
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewExecPlayer 创建系统命令播放器
// command 为空时使用 ffplay（-loop 0 无限循环）
func NewExecPlayer(command string, logger *zap.Logger) *ExecPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &ExecPlayer{
		command: command,
		logger:  logger,
	}
}

// PlayLoop 启动循环播放子进程
func (p *ExecPlayer) PlayLoop(sound string) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := exec.Command(p.command, "-nodisp", "-autoexit", "-loglevel", "quiet", "-loop", "0", sound)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start audio playback: %w", err)
	}

	p.logger.Info("Audio playback started",
		zap.String("sound", sound),
		zap.Int("pid", cmd.Process.Pid),
	)

	// 回收进程，避免僵尸
	go func() {
		_ = cmd.Wait()
	}()

	return cmd, nil
}

// Stop 停止播放子进程
func (p *ExecPlayer) Stop(handle Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cmd, ok := handle.(*exec.Cmd)
	if !ok || cmd == nil || cmd.Process == nil {
		return fmt.Errorf("invalid playback handle")
	}

	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to stop audio playback: %w", err)
	}

	p.logger.Info("Audio playback stopped", zap.Int("pid", cmd.Process.Pid))
	return nil
}
