package insteon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	ins "github.com/nerrad567/gray-logic-insteon/internal/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/plm"
)

// Bridge operation constants.
const (
	// minTopicParts is graylogic/command/insteon/{address}.
	minTopicParts = 4

	// commandTimeout is the timeout for sending commands to devices.
	commandTimeout = 5 * time.Second

	// probeTimeout bounds each engine version request.
	probeTimeout = 5 * time.Second

	// maxPercent is the top of the Core level scale; the wire scale is 0-255.
	maxPercent = 100
	maxLevel   = 255
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MQTTClient is the interface for MQTT operations.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Modem is the PLM as seen by the bridge. *plm.Modem satisfies it.
type Modem interface {
	ModemStatus
	ins.Modem
	ins.SceneRefresher
	SetOnMessage(callback func(ins.Message))
	SetOnX10(callback func(ins.X10Frame))
	SetOnSceneMembers(callback func(group int, members []ins.InsteonAddress))
}

var _ Modem = (*plm.Modem)(nil)

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// BridgeID identifies the bridge in health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// Port is the modem serial port, reported in health messages.
	Port string

	// HealthInterval defaults to 30 seconds.
	HealthInterval time.Duration

	MQTTClient MQTTClient
	Modem      Modem
	Registry   *ins.Registry

	// Engines caches resolved engines. Optional.
	Engines EngineStore

	// Telemetry records state updates and modem counters. Optional.
	Telemetry Telemetry

	// DeviceIDs maps addresses to Gray Logic device IDs. Devices without an
	// entry use their address as the ID.
	DeviceIDs map[ins.DeviceAddress]string

	Logger Logger
}

// Bridge translates between MQTT commands/state and the Insteon modem.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt      MQTTClient
	modem     Modem
	registry  *ins.Registry
	engines   EngineStore
	telemetry Telemetry
	deviceIDs map[ins.DeviceAddress]string
	health    *HealthReporter

	// Last X10 unit addressed per house code.
	x10Last map[byte]ins.X10Address
	x10Mu   sync.Mutex

	// Insteon devices with an outstanding status request. Their next
	// direct ACK carries the level in cmd2.
	pendingStatus map[ins.InsteonAddress]bool
	pendingMu     sync.Mutex

	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("%w: MQTT client", ErrMissingDependency)
	}
	if opts.Modem == nil {
		return nil, fmt.Errorf("%w: modem", ErrMissingDependency)
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("%w: registry", ErrMissingDependency)
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		mqtt:          opts.MQTTClient,
		modem:         opts.Modem,
		registry:      opts.Registry,
		engines:       opts.Engines,
		telemetry:     opts.Telemetry,
		deviceIDs:     opts.DeviceIDs,
		x10Last:       make(map[byte]ins.X10Address),
		pendingStatus: make(map[ins.InsteonAddress]bool),
		ctx:           ctx,
		ctxCancel:     ctxCancel,
		logger:        opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.BridgeID,
		Version:   opts.Version,
		Port:      opts.Port,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Modem:     opts.Modem,
		Telemetry: opts.Telemetry,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start attaches the modem to every device and scene, subscribes to
// commands, starts health reporting and probes unresolved engines.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	b.modem.SetOnMessage(b.handleInsteonMessage)
	b.modem.SetOnX10(b.handleX10)
	b.modem.SetOnSceneMembers(b.handleSceneMembers)
	b.registry.AttachModem(b.modem)

	topic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(topic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", topic)

	b.health.SetDeviceCount(b.registry.Count())
	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.probeEngines(b.ctx)
	}()

	b.logInfo("bridge started", "devices", b.registry.Count(), "scenes", len(b.registry.Scenes()))
	return nil
}

// Stop gracefully shuts down the bridge. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.health.Stop()
		b.wg.Wait()
		b.registry.AttachModem(nil)
		b.logInfo("bridge stopped")
	})
}

// probeEngines resolves the engine of every Insteon device that has none,
// from the cache where possible and otherwise by asking the device.
func (b *Bridge) probeEngines(ctx context.Context) {
	for _, e := range b.registry.List() {
		if ctx.Err() != nil {
			return
		}
		dev, ok := e.(*ins.InsteonDevice)
		if !ok {
			continue
		}
		addr := dev.Address()

		var resolved bool
		if err := b.viewInsteon(addr, func(d *ins.InsteonDevice) error {
			resolved = d.EngineResolved()
			return nil
		}); err != nil || resolved {
			continue
		}

		if b.engines != nil {
			version, found, err := b.engines.LoadEngine(ctx, addr)
			if err != nil {
				b.logError("engine cache lookup failed", err)
			} else if found {
				b.resolveEngine(addr, version)
				b.logDebug("engine loaded from cache", "address", addr.String(), "version", version)
				continue
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := b.viewInsteon(addr, func(d *ins.InsteonDevice) error {
			return d.Send(sendCtx, ins.CmdGetEngineVersion)
		})
		cancel()
		if err != nil {
			b.logWarn("engine probe failed", "address", addr.String(), "error", err)
		}
	}
}

// resolveEngine records version on the device. first is true if this call
// resolved it.
func (b *Bridge) resolveEngine(addr ins.InsteonAddress, version byte) (engine ins.Engine, first bool, err error) {
	err = b.registry.Update(addr, func(e ins.Entity) error {
		dev, ok := e.(*ins.InsteonDevice)
		if !ok {
			return fmt.Errorf("%w: %s is not an Insteon device", ins.ErrDeviceNotFound, addr)
		}
		first = !dev.EngineResolved()
		engine = dev.ResolveEngine(version)
		return nil
	})
	return engine, first, err
}

func (b *Bridge) viewInsteon(addr ins.InsteonAddress, fn func(*ins.InsteonDevice) error) error {
	return b.registry.View(addr, func(e ins.Entity) error {
		dev, ok := e.(*ins.InsteonDevice)
		if !ok {
			return fmt.Errorf("%w: %s is not an Insteon device", ins.ErrDeviceNotFound, addr)
		}
		return fn(dev)
	})
}

// handleMQTTMessage routes incoming MQTT messages.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts || parts[1] != "command" {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}
	b.handleCommand(parts[len(parts)-1], payload)
}

// handleCommand processes a command message from Core.
func (b *Bridge) handleCommand(topicAddress string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}

	address := cmd.Address
	if address == "" {
		address = topicAddress
	}
	if cmd.ID == "" {
		cmd.ID = "cmd-" + uuid.NewString()[:16]
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"address", address,
		"command", cmd.Command)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if cmd.Command == "refresh_scene" {
		b.executeRefreshScene(ctx, cmd, address)
		return
	}

	addr, err := ins.ParseAddress(address)
	if err != nil {
		b.publishAckError(cmd, address, ErrCodeInvalidAddress, err.Error())
		return
	}
	if _, err := b.registry.Get(addr); err != nil {
		b.publishAckError(cmd, address, ErrCodeNotConfigured,
			fmt.Sprintf("device %s not configured", addr))
		return
	}

	err = b.registry.View(addr, func(e ins.Entity) error {
		switch dev := e.(type) {
		case *ins.InsteonDevice:
			return b.executeInsteon(ctx, cmd, dev)
		case *ins.X10Device:
			return b.executeX10(ctx, cmd, dev)
		default:
			b.publishAckError(cmd, address, ErrCodeNotConfigured, "unsupported device")
			return fmt.Errorf("unsupported device type %T", e)
		}
	})
	if err != nil {
		b.logError("command execution failed", err)
	}
}

// executeInsteon sends a command to an Insteon device.
func (b *Bridge) executeInsteon(ctx context.Context, cmd CommandMessage, dev *ins.InsteonDevice) error {
	address := dev.Address().String()

	icmd, ackErr := insteonCommandFor(cmd)
	if ackErr != nil {
		b.publishAckError(cmd, address, ackErr.Code, ackErr.Message)
		return errors.New(ackErr.Message)
	}

	if cmd.Command == "status" {
		b.setPendingStatus(dev.Address(), true)
	}

	b.publishAck(cmd, address, AckAccepted)
	if err := dev.Send(ctx, icmd); err != nil {
		b.setPendingStatus(dev.Address(), false)
		b.publishAckError(cmd, address, codeForSendError(err), fmt.Sprintf("send failed: %v", err))
		return err
	}
	return nil
}

// executeX10 sends a command to an X10 device.
func (b *Bridge) executeX10(ctx context.Context, cmd CommandMessage, dev *ins.X10Device) error {
	address := dev.Address().String()

	xcmd, ok := x10Commands[cmd.Command]
	if !ok {
		b.publishAckError(cmd, address, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown command: %s", cmd.Command))
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}

	b.publishAck(cmd, address, AckAccepted)
	if err := dev.Send(ctx, xcmd); err != nil {
		b.publishAckError(cmd, address, codeForSendError(err), fmt.Sprintf("send failed: %v", err))
		return err
	}
	return nil
}

// executeRefreshScene asks the modem to re-read the members of a scene.
func (b *Bridge) executeRefreshScene(ctx context.Context, cmd CommandMessage, address string) {
	groupAny, ok := cmd.Parameters["group"]
	if !ok {
		b.publishAckError(cmd, address, ErrCodeInvalidParameters, "missing 'group' parameter")
		return
	}
	group, ok := groupAny.(float64)
	if !ok || group != math.Trunc(group) {
		b.publishAckError(cmd, address, ErrCodeInvalidParameters, "'group' must be an integer")
		return
	}

	scene, err := b.registry.Scene(int(group))
	if err != nil {
		b.publishAckError(cmd, address, ErrCodeNotConfigured, err.Error())
		return
	}
	if err := scene.Refresh(ctx); err != nil {
		b.publishAckError(cmd, address, codeForSendError(err), err.Error())
		return
	}
	b.publishAck(cmd, address, AckAccepted)
}

// insteonCommandFor maps a Core command onto an Insteon command.
func insteonCommandFor(cmd CommandMessage) (ins.InsteonCommand, *AckError) {
	switch cmd.Command {
	case "on":
		levelAny, ok := cmd.Parameters["level"]
		if !ok {
			return ins.CmdLightOn, nil
		}
		level, ok := levelAny.(float64)
		if !ok {
			return ins.InsteonCommand{}, &AckError{Code: ErrCodeInvalidParameters, Message: "'level' must be a number"}
		}
		if level < 0 || level > maxPercent {
			return ins.InsteonCommand{}, &AckError{Code: ErrCodeInvalidParameters,
				Message: fmt.Sprintf("'level' must be 0-100, got %.2f", level)}
		}
		return ins.LightOnLevel(percentToLevel(level)), nil
	case "off":
		return ins.CmdLightOff, nil
	case "dim":
		return ins.CmdLightDim, nil
	case "bright":
		return ins.CmdLightBrighten, nil
	case "status":
		return ins.CmdStatusRequest, nil
	case "ping":
		return ins.CmdPing, nil
	default:
		return ins.InsteonCommand{}, &AckError{Code: ErrCodeInvalidCommand,
			Message: fmt.Sprintf("unknown command: %s", cmd.Command)}
	}
}

// x10Commands maps Core commands onto X10 function codes.
var x10Commands = map[string]ins.X10Command{
	"on":             ins.X10On,
	"off":            ins.X10Off,
	"dim":            ins.X10Dim,
	"bright":         ins.X10Bright,
	"status":         ins.X10StatusRequest,
	"all_units_off":  ins.X10AllUnitsOff,
	"all_lights_on":  ins.X10AllLightsOn,
	"all_lights_off": ins.X10AllLightsOff,
}

// codeForSendError classifies a send failure for the ack.
func codeForSendError(err error) string {
	switch {
	case errors.Is(err, ins.ErrNoModemAssigned):
		return ErrCodeNotConfigured
	case errors.Is(err, ins.ErrInvalidMessage), errors.Is(err, ins.ErrInvalidAddress):
		return ErrCodeInvalidParameters
	case errors.Is(err, plm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, plm.ErrNAK), errors.Is(err, plm.ErrBusy), errors.Is(err, plm.ErrNotConnected):
		return ErrCodeDeviceUnreachable
	default:
		return ErrCodeBridgeError
	}
}

func percentToLevel(percent float64) byte {
	return byte(math.Round(percent * maxLevel / maxPercent))
}

func levelToPercent(level byte) int {
	return int(math.Round(float64(level) * maxPercent / maxLevel))
}

func levelState(level byte) map[string]any {
	return map[string]any{
		"on":    level > 0,
		"level": levelToPercent(level),
	}
}

// handleInsteonMessage processes a message received by the modem.
func (b *Bridge) handleInsteonMessage(msg ins.Message) {
	if msg.Cmd1 == ins.CmdGetEngineVersion.Cmd1 && (msg.IsAck() || msg.IsNak()) {
		version := msg.Cmd2
		if msg.IsNak() {
			// Unlinked I2CS devices refuse the request; assume a checksum is needed.
			version = ins.EngineUnknown.Version()
		}
		b.handleEngineVersion(msg.From, version)
		return
	}

	if _, err := b.registry.Get(msg.From); err != nil {
		b.logDebug("message from unknown device", "address", msg.From.String())
		return
	}

	if state := b.stateFromMessage(msg); state != nil {
		b.publishState(msg.From, state)
	}
}

func (b *Bridge) handleEngineVersion(addr ins.InsteonAddress, version byte) {
	engine, first, err := b.resolveEngine(addr, version)
	if err != nil {
		b.logDebug("engine version from unknown device", "address", addr.String())
		return
	}
	if !first {
		return
	}

	b.logInfo("engine resolved", "address", addr.String(), "engine", engine.String())

	if b.engines != nil {
		if err := b.engines.SaveEngine(b.ctx, addr, version); err != nil {
			b.logError("failed to cache engine", err)
		}
	}
}

// stateFromMessage derives device state from a received message, or nil.
func (b *Bridge) stateFromMessage(msg ins.Message) map[string]any {
	if msg.IsAck() && b.takePendingStatus(msg.From) {
		return levelState(msg.Cmd2)
	}
	if !msg.IsAck() && !msg.IsGroup() {
		return nil
	}

	switch msg.Cmd1 {
	case ins.CmdLightOn.Cmd1, ins.CmdLightOnFast.Cmd1:
		if msg.IsGroup() {
			// cmd2 carries the group number, not a level.
			return map[string]any{"on": true}
		}
		return levelState(msg.Cmd2)
	case ins.CmdLightOff.Cmd1, ins.CmdLightOffFast.Cmd1:
		return levelState(0)
	default:
		return nil
	}
}

func (b *Bridge) setPendingStatus(addr ins.InsteonAddress, pending bool) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	if pending {
		b.pendingStatus[addr] = true
	} else {
		delete(b.pendingStatus, addr)
	}
}

func (b *Bridge) takePendingStatus(addr ins.InsteonAddress) bool {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	if !b.pendingStatus[addr] {
		return false
	}
	delete(b.pendingStatus, addr)
	return true
}

// handleX10 processes an X10 frame. Address frames select a unit; command
// frames apply to the last unit selected in the same house.
func (b *Bridge) handleX10(frame ins.X10Frame) {
	house := frame.House()

	if frame.IsAddress() {
		b.x10Mu.Lock()
		b.x10Last[house] = frame.Address()
		b.x10Mu.Unlock()
		return
	}

	cmd, err := frame.Command()
	if err != nil {
		b.logWarn("dropping X10 frame", "error", err)
		return
	}

	switch cmd {
	case ins.X10AllUnitsOff, ins.X10AllLightsOff:
		b.publishHouse(house, map[string]any{"on": false})
		return
	case ins.X10AllLightsOn:
		b.publishHouse(house, map[string]any{"on": true})
		return
	}

	b.x10Mu.Lock()
	addr, ok := b.x10Last[house]
	b.x10Mu.Unlock()
	if !ok {
		b.logDebug("X10 command without address", "house", string(house), "command", cmd.String())
		return
	}

	state := x10State(cmd)
	if state == nil {
		b.logDebug("ignoring X10 command", "address", addr.String(), "command", cmd.String())
		return
	}
	if _, err := b.registry.Get(addr); err != nil {
		b.logDebug("X10 command for unknown device", "address", addr.String())
		return
	}
	b.publishState(addr, state)
}

func x10State(cmd ins.X10Command) map[string]any {
	switch cmd {
	case ins.X10On, ins.X10StatusOn:
		return map[string]any{"on": true}
	case ins.X10Off, ins.X10StatusOff:
		return map[string]any{"on": false}
	case ins.X10Dim, ins.X10Bright:
		return map[string]any{"last_command": strings.ToLower(cmd.String())}
	default:
		return nil
	}
}

// publishHouse publishes state for every registered X10 device in house.
func (b *Bridge) publishHouse(house byte, state map[string]any) {
	for _, e := range b.registry.List() {
		addr, ok := e.DeviceAddress().(ins.X10Address)
		if ok && addr.House == house {
			b.publishState(addr, state)
		}
	}
}

// handleSceneMembers publishes the refreshed member list of a scene.
func (b *Bridge) handleSceneMembers(group int, members []ins.InsteonAddress) {
	addrs := make([]string, len(members))
	for i, m := range members {
		addrs[i] = m.String()
	}

	msg := NewStateMessage(fmt.Sprintf("scene-%d", group), fmt.Sprintf("scene/%d", group),
		map[string]any{"group": group, "members": addrs})

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal scene state", err)
		return
	}
	if err := b.mqtt.Publish(SceneStateTopic(group), payload, 1, true); err != nil {
		b.logError("failed to publish scene state", err)
	}
}

func (b *Bridge) deviceID(addr ins.DeviceAddress) string {
	if id, ok := b.deviceIDs[addr]; ok {
		return id
	}
	return addr.String()
}

func (b *Bridge) publishState(addr ins.DeviceAddress, state map[string]any) {
	msg := NewStateMessage(b.deviceID(addr), addr.String(), state)

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	if err := b.mqtt.Publish(StateTopic(addr.String()), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	}
	if b.telemetry != nil {
		b.telemetry.WriteDeviceState(msg.DeviceID, msg.Address, state)
	}
}

func (b *Bridge) publishAck(cmd CommandMessage, address string, status AckStatus) {
	b.publish(AckTopic(address), NewAckMessage(cmd, status, address))
}

func (b *Bridge) publishAckError(cmd CommandMessage, address, code, message string) {
	b.publish(AckTopic(address), NewAckError(cmd, address, code, message))
	b.logError("command failed", fmt.Errorf("code=%s message=%s", code, message))
}

func (b *Bridge) publish(topic string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal message", err)
		return
	}
	if err := b.mqtt.Publish(topic, payload, 1, false); err != nil {
		b.logError("failed to publish", err)
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.health.SetLogger(logger)
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
