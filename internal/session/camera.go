package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// StreamHandle идентифицирует захваченный поток камеры.
type StreamHandle string

// CameraDevice - устройство захвата. Сам драйвер живёт на стороне клиента.
type CameraDevice interface {
	Acquire(ctx context.Context) (StreamHandle, error)
	Release(h StreamHandle) error
}

var ErrCameraUnavailable = errors.New("camera unavailable")

// CameraManager держит не более одного активного потока.
// Освобождение идемпотентно, повторный вызов ничего не делает.
type CameraManager struct {
	mu      sync.Mutex
	device  CameraDevice
	streams map[StreamHandle]struct{}
	logger  *zap.Logger
}

func NewCameraManager(device CameraDevice, logger *zap.Logger) *CameraManager {
	return &CameraManager{
		device:  device,
		streams: make(map[StreamHandle]struct{}),
		logger:  logger,
	}
}

// Acquire освобождает всё, что было захвачено ранее, и берёт новый поток.
func (m *CameraManager) Acquire(ctx context.Context) (StreamHandle, error) {
	m.StopAllStreams()
	h, err := m.Open(ctx)
	if err != nil {
		return "", err
	}
	m.Adopt(h)
	return h, nil
}

// Open захватывает поток у устройства, но не регистрирует его.
// Может долго ждать клиента, поэтому вызывается вне цикла контроллера.
func (m *CameraManager) Open(ctx context.Context) (StreamHandle, error) {
	if m.device == nil {
		return "", ErrCameraUnavailable
	}
	h, err := m.device.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire camera: %w", err)
	}
	return h, nil
}

// Adopt регистрирует поток, полученный через Open.
func (m *CameraManager) Adopt(h StreamHandle) {
	m.mu.Lock()
	m.streams[h] = struct{}{}
	m.mu.Unlock()
	m.logger.Debug("camera stream acquired", zap.String("stream", string(h)))
}

// Discard освобождает поток, который так и не был зарегистрирован.
func (m *CameraManager) Discard(h StreamHandle) {
	if m.device == nil || h == "" {
		return
	}
	m.release(h)
}

func (m *CameraManager) StopStream(h StreamHandle) {
	m.mu.Lock()
	if _, ok := m.streams[h]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.streams, h)
	m.mu.Unlock()

	m.release(h)
}

// StopAllStreams освобождает все потоки, даже если вызывающий не знает,
// кто их захватил.
func (m *CameraManager) StopAllStreams() {
	m.mu.Lock()
	handles := make([]StreamHandle, 0, len(m.streams))
	for h := range m.streams {
		handles = append(handles, h)
	}
	m.streams = make(map[StreamHandle]struct{})
	m.mu.Unlock()

	for _, h := range handles {
		m.release(h)
	}
}

func (m *CameraManager) ActiveStreams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

func (m *CameraManager) release(h StreamHandle) {
	if err := m.device.Release(h); err != nil {
		m.logger.Warn("camera release failed",
			zap.String("stream", string(h)),
			zap.Error(err),
		)
		return
	}
	m.logger.Debug("camera stream released", zap.String("stream", string(h)))
}
