package plm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

const (
	// defaultAckTimeout is how long to wait for the modem to echo a command.
	defaultAckTimeout = 2 * time.Second

	// defaultRefreshTimeout bounds one walk of the ALL-Link database.
	defaultRefreshTimeout = 30 * time.Second

	// callbackQueueSize is the buffer size for the event callback queue.
	callbackQueueSize = 100

	// sceneQueueSize is the number of scene refreshes that may be pending.
	sceneQueueSize = 16

	// echoQueueSize is the number of echoes held until Send claims them.
	echoQueueSize = 4

	// recordQueueSize buffers ALL-Link records during a database walk.
	recordQueueSize = 4

	// defaultBusyRetryDelay is the pause before retrying a command the modem
	// refused as busy.
	defaultBusyRetryDelay = 100 * time.Millisecond

	// maxBusyRetries bounds retries of one database read.
	maxBusyRetries = 5
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Modem.
type Options struct {
	// AckTimeout is the maximum wait for a command echo. Default: 2 seconds.
	AckTimeout time.Duration

	// RefreshTimeout bounds a scene refresh. Default: 30 seconds.
	RefreshTimeout time.Duration

	// BusyRetryDelay is the pause before retrying a database read the modem
	// refused as busy. Default: 100 milliseconds.
	BusyRetryDelay time.Duration

	// Logger is optional.
	Logger Logger
}

// Stats holds operational statistics.
type Stats struct {
	FramesTx      uint64
	FramesRx      uint64
	FramesDropped uint64 // Events dropped due to a full callback queue
	NAKsTotal     uint64
	ErrorsTotal   uint64
	LastActivity  time.Time
	Connected     bool
}

// IMInfo identifies the modem itself.
type IMInfo struct {
	Address     insteon.InsteonAddress
	Category    byte
	SubCategory byte
	Firmware    byte
}

// event is one unsolicited frame queued for callbacks.
type event struct {
	msg *insteon.Message
	x10 *insteon.X10Frame
}

// Ensure Modem satisfies the device and scene transport interfaces.
var (
	_ insteon.Modem          = (*Modem)(nil)
	_ insteon.SceneRefresher = (*Modem)(nil)
)

// Modem is a client for an Insteon PowerLinc Modem.
type Modem struct {
	port io.ReadWriteCloser
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	connMu    sync.RWMutex
	connected bool

	// One host command in flight at a time; the reader hands its echo back
	// through echo.
	sendMu sync.Mutex
	echo   chan []byte

	// ALL-Link database walks are serialised by dbMu. Records are only
	// accepted while walking is set.
	dbMu    sync.Mutex
	walking atomic.Bool
	records chan []byte

	callbackMu     sync.RWMutex
	onMessage      func(insteon.Message)
	onX10          func(insteon.X10Frame)
	onSceneMembers func(group int, members []insteon.InsteonAddress)

	// A single callback worker keeps X10 address and command frames in order.
	events chan event
	scenes chan int

	startOnce sync.Once
	portOnce  sync.Once
	done      *closeOnce
	wg        sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex

	framesTx      atomic.Uint64
	framesRx      atomic.Uint64
	framesDropped atomic.Uint64
	naksTotal     atomic.Uint64
	errorsTotal   atomic.Uint64
	lastActivity  atomic.Int64
}

// New creates a modem client on an open port. Call Start to begin reading.
func New(port io.ReadWriteCloser, opts Options) *Modem {
	if opts.AckTimeout == 0 {
		opts.AckTimeout = defaultAckTimeout
	}
	if opts.RefreshTimeout == 0 {
		opts.RefreshTimeout = defaultRefreshTimeout
	}
	if opts.BusyRetryDelay == 0 {
		opts.BusyRetryDelay = defaultBusyRetryDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Modem{
		port:    port,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		echo:    make(chan []byte, echoQueueSize),
		records: make(chan []byte, recordQueueSize),
		events:  make(chan event, callbackQueueSize),
		scenes:  make(chan int, sceneQueueSize),
		done:    newCloseOnce(),
		logger:  opts.Logger,
	}
}

// Start launches the receive loop and workers. Calling it again is a no-op.
func (m *Modem) Start() {
	m.startOnce.Do(func() {
		m.setConnected(true)

		m.wg.Add(3) //nolint:mnd // receive loop, callback worker, scene worker
		go m.receiveLoop()
		go m.callbackWorker()
		go m.sceneWorker()

		m.logInfo("modem started")
	})
}

// Close stops the workers and closes the port. Safe to call multiple times.
func (m *Modem) Close() error {
	m.done.Close()
	m.cancel()
	m.setConnected(false)

	// Closing the port unblocks the pending read.
	var err error
	m.portOnce.Do(func() {
		err = m.port.Close()
		m.logInfo("modem closed")
	})
	m.wg.Wait()
	return err
}

// Send writes one host command frame and waits for the modem to echo it.
//
// Returns:
//   - ErrInvalidFrame if frame is not a host command
//   - ErrNAK if the modem rejected the command
//   - ErrBusy if the modem was too busy to accept it
//   - ErrTimeout if no echo arrived within the ack timeout
//   - ErrNotConnected if the modem is closed
func (m *Modem) Send(ctx context.Context, frame []byte) error {
	_, err := m.exchange(ctx, frame)
	return err
}

// exchange sends frame and returns the modem's echo.
func (m *Modem) exchange(ctx context.Context, frame []byte) ([]byte, error) {
	if len(frame) < 2 || frame[0] != insteon.FrameStart || !isEcho(frame[1]) {
		return nil, fmt.Errorf("%w: % X", ErrInvalidFrame, frame)
	}
	if !m.IsConnected() {
		return nil, ErrNotConnected
	}

	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	// Discard echoes left over from commands that timed out.
drain:
	for {
		select {
		case <-m.echo:
		default:
			break drain
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := m.port.Write(frame); err != nil {
		m.errorsTotal.Add(1)
		return nil, fmt.Errorf("write: %w", err)
	}
	m.framesTx.Add(1)

	timer := time.NewTimer(m.opts.AckTimeout)
	defer timer.Stop()

	for {
		select {
		case echo := <-m.echo:
			if len(echo) == 1 {
				m.naksTotal.Add(1)
				return nil, fmt.Errorf("%w: command 0x%02X", ErrBusy, frame[1])
			}
			// A late echo of an earlier command must not answer this one.
			if len(echo) <= len(frame) || !bytes.Equal(echo[:len(frame)], frame) {
				m.logDebug("ignoring unrelated echo", "frame", fmt.Sprintf("% X", echo))
				continue
			}
			if echo[len(echo)-1] != insteon.ACK {
				m.naksTotal.Add(1)
				return echo, fmt.Errorf("%w: command 0x%02X", ErrNAK, frame[1])
			}
			return echo, nil
		case <-timer.C:
			m.errorsTotal.Add(1)
			return nil, fmt.Errorf("%w: command 0x%02X", ErrTimeout, frame[1])
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.done.Done():
			return nil, ErrNotConnected
		}
	}
}

// Info queries the modem's own address, category and firmware.
func (m *Modem) Info(ctx context.Context) (IMInfo, error) {
	echo, err := m.exchange(ctx, []byte{insteon.FrameStart, insteon.CmdGetIMInfo})
	if err != nil {
		return IMInfo{}, err
	}

	// 0x02 0x60 ID1 ID2 ID3 cat subcat firmware ACK
	var info IMInfo
	copy(info.Address[:], echo[2:5])
	info.Category = echo[5]
	info.SubCategory = echo[6]
	info.Firmware = echo[7]
	return info, nil
}

// RefreshScene queues a re-read of the members of group. It returns once the
// request is queued; the member list is delivered to the SetOnSceneMembers
// callback. Requests are processed in the order they were made.
func (m *Modem) RefreshScene(ctx context.Context, group int) error {
	if group < 0 || group > 255 {
		return fmt.Errorf("%w: %d", insteon.ErrInvalidGroup, group)
	}
	if m.isClosed() {
		return ErrNotConnected
	}

	select {
	case m.scenes <- group:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done.Done():
		return ErrNotConnected
	}
}

// receiveLoop reads frames until the port fails or is closed.
func (m *Modem) receiveLoop() {
	defer m.wg.Done()

	fr := newFrameReader(m.port)
	for {
		frame, err := fr.next()
		if err != nil {
			if errors.Is(err, ErrUnknownCommand) {
				m.errorsTotal.Add(1)
				m.logWarn("skipping unknown frame", "error", err)
				continue
			}
			if !m.isClosed() {
				m.errorsTotal.Add(1)
				m.logError("read failed", err)
			}
			m.setConnected(false)
			return
		}

		m.framesRx.Add(1)
		m.lastActivity.Store(time.Now().Unix())
		m.dispatch(frame)
	}
}

// dispatch routes one received frame.
func (m *Modem) dispatch(frame []byte) {
	if len(frame) == 1 || isEcho(frame[1]) {
		select {
		case m.echo <- frame:
		default:
			m.logDebug("dropping unclaimed echo", "frame", fmt.Sprintf("% X", frame))
		}
		return
	}

	switch frame[1] {
	case insteon.CmdStandardReceived, insteon.CmdExtendedReceived:
		msg, err := insteon.ParseMessage(frame)
		if err != nil {
			m.errorsTotal.Add(1)
			m.logError("parse message failed", err)
			return
		}
		m.queue(event{msg: &msg})

	case insteon.CmdX10Received:
		x, err := insteon.ParseX10Frame(frame[2], frame[3])
		if err != nil {
			m.logWarn("dropping X10 frame", "error", err)
			return
		}
		m.queue(event{x10: &x})

	case insteon.CmdAllLinkRecord:
		if !m.walking.Load() {
			return
		}
		select {
		case m.records <- frame:
		default:
			m.logWarn("dropping ALL-Link record", "frame", fmt.Sprintf("% X", frame))
		}

	default:
		m.logDebug("unhandled frame", "cmd", fmt.Sprintf("0x%02X", frame[1]))
	}
}

// queue hands an event to the callback worker, dropping it if the queue is full.
func (m *Modem) queue(ev event) {
	select {
	case m.events <- ev:
	default:
		m.framesDropped.Add(1)
		m.errorsTotal.Add(1)
		m.logError("callback queue full, dropping event", nil)
	}
}

// callbackWorker delivers queued events to the registered callbacks.
func (m *Modem) callbackWorker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done.Done():
			return
		case ev := <-m.events:
			m.deliver(ev)
		}
	}
}

func (m *Modem) deliver(ev event) {
	defer func() {
		if r := recover(); r != nil {
			m.logError("callback panic", fmt.Errorf("%v", r))
		}
	}()

	m.callbackMu.RLock()
	onMessage, onX10 := m.onMessage, m.onX10
	m.callbackMu.RUnlock()

	switch {
	case ev.msg != nil && onMessage != nil:
		onMessage(*ev.msg)
	case ev.x10 != nil && onX10 != nil:
		onX10(*ev.x10)
	}
}

// SetOnMessage sets the callback for received Insteon messages.
func (m *Modem) SetOnMessage(callback func(insteon.Message)) {
	m.callbackMu.Lock()
	m.onMessage = callback
	m.callbackMu.Unlock()
}

// SetOnX10 sets the callback for received X10 frames.
func (m *Modem) SetOnX10(callback func(insteon.X10Frame)) {
	m.callbackMu.Lock()
	m.onX10 = callback
	m.callbackMu.Unlock()
}

// SetOnSceneMembers sets the callback that receives refreshed scene members.
func (m *Modem) SetOnSceneMembers(callback func(group int, members []insteon.InsteonAddress)) {
	m.callbackMu.Lock()
	m.onSceneMembers = callback
	m.callbackMu.Unlock()
}

// SetLogger sets the logger for this client.
func (m *Modem) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

// IsConnected returns true while the port is open and readable.
func (m *Modem) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected
}

func (m *Modem) setConnected(v bool) {
	m.connMu.Lock()
	m.connected = v
	m.connMu.Unlock()
}

// HealthCheck reports ErrNotConnected once the port has failed or closed.
func (m *Modem) HealthCheck(_ context.Context) error {
	if !m.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Stats returns current operational statistics.
func (m *Modem) Stats() Stats {
	return Stats{
		FramesTx:      m.framesTx.Load(),
		FramesRx:      m.framesRx.Load(),
		FramesDropped: m.framesDropped.Load(),
		NAKsTotal:     m.naksTotal.Load(),
		ErrorsTotal:   m.errorsTotal.Load(),
		LastActivity:  m.lastActivityTime(),
		Connected:     m.IsConnected(),
	}
}

// lastActivityTime is the zero time until the first frame arrives.
func (m *Modem) lastActivityTime() time.Time {
	ts := m.lastActivity.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

func (m *Modem) isClosed() bool {
	select {
	case <-m.done.Done():
		return true
	default:
		return false
	}
}

func (m *Modem) getLogger() Logger {
	m.loggerMu.RLock()
	defer m.loggerMu.RUnlock()
	return m.logger
}

func (m *Modem) logDebug(msg string, keysAndValues ...any) {
	if logger := m.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (m *Modem) logInfo(msg string, keysAndValues ...any) {
	if logger := m.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (m *Modem) logWarn(msg string, keysAndValues ...any) {
	if logger := m.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (m *Modem) logError(msg string, err error) {
	if logger := m.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
