package simulator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/clock"
	"github.com/muurk/tigerscale/internal/logging"
)

const (
	// DefaultTrueFactor is the factor that makes the emulated load cell
	// read true grams. A scale with the default stored factor reads about
	// 5% heavy until calibrated.
	DefaultTrueFactor = 420.0

	// DefaultAutoPushDelay is the countdown, in ticks, before a presented
	// tag's weight is sent to the cloud.
	DefaultAutoPushDelay = 3

	// resultTicks is how long "success" or "error" stays in sendToCloud.
	resultTicks = 2

	// baselineRaw is the raw reading of the empty load cell.
	baselineRaw = 8000.0
)

var (
	ErrNoTag         = errors.New("no tag on the scale")
	ErrInvalidAPIKey = errors.New("API key is not valid")
	ErrInvalidFactor = errors.New("calibration factor must be positive")
	ErrInvalidWeight = errors.New("weight must be positive")
	ErrMissingAPIKey = errors.New("API key is empty")
)

// Frame is a push channel message.
type Frame struct {
	Weight float64 `json:"weight"`
	UID    string  `json:"uid"`
}

// Status is the /api/status body, field for field as the firmware sends it.
type Status struct {
	Weight            float64 `json:"weight"`
	UID               string  `json:"uid"`
	UIDHex            string  `json:"uid_hex"`
	CalibrationFactor float64 `json:"calibrationFactor"`
	APIKey            string  `json:"apiKey"`
	APIValid          bool    `json:"apiValid"`
	DisplayName       string  `json:"displayName"`
	Cloud             string  `json:"cloud"`
	UptimeSeconds     int64   `json:"uptime_s"`
	SendToCloud       string  `json:"sendToCloud"`
	WiFi              string  `json:"wifi"`
	IP                string  `json:"ip"`
}

// ScaleConfig configures the emulated hardware and cloud.
type ScaleConfig struct {
	// TrueFactor defaults to DefaultTrueFactor.
	TrueFactor float64
	// ValidKeys maps accepted API keys to account display names. When
	// empty, every non-empty key is accepted.
	ValidKeys map[string]string
	// AutoPushDelay defaults to DefaultAutoPushDelay. Negative disables
	// the automatic push.
	AutoPushDelay int
	IP            string
	Clock         clock.Clock
}

// Scale emulates the firmware: an HX711 load cell, an RFID reader, the
// preferences in NVS and the automatic push of weights to the cloud.
type Scale struct {
	cfg   ScaleConfig
	store Store
	clk   clock.Clock

	mu          sync.Mutex
	prefs       Prefs
	apiValid    bool
	displayName string
	load        float64
	tareRaw     float64
	uid         string
	sendToCloud string
	countdown   int
	resultLeft  int
	bootedAt    time.Time
	listeners   []func(Frame)
}

// NewScale boots an emulated scale with prefs from store.
func NewScale(cfg ScaleConfig, store Store) (*Scale, error) {
	if cfg.TrueFactor <= 0 {
		cfg.TrueFactor = DefaultTrueFactor
	}
	if cfg.AutoPushDelay == 0 {
		cfg.AutoPushDelay = DefaultAutoPushDelay
	}
	if cfg.IP == "" {
		cfg.IP = "127.0.0.1"
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if store == nil {
		store = NewMemoryStore()
	}

	prefs, err := store.Load()
	if err != nil {
		return nil, err
	}

	s := &Scale{cfg: cfg, store: store, clk: cfg.Clock}
	s.bootLocked(prefs)
	return s, nil
}

// OnFrame registers fn for every push frame.
func (s *Scale) OnFrame(fn func(Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Status returns the current /api/status body.
func (s *Scale) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	cloud := "down"
	if s.prefs.WiFiSSID != "" {
		cloud = "up"
	}
	return Status{
		Weight:            s.weightLocked(),
		UID:               s.uid,
		UIDHex:            uidHex(s.uid),
		CalibrationFactor: s.prefs.CalibrationFactor,
		APIKey:            s.prefs.APIKey,
		APIValid:          s.apiValid,
		DisplayName:       s.displayName,
		Cloud:             cloud,
		UptimeSeconds:     int64(s.clk.Now().Sub(s.bootedAt) / time.Second),
		SendToCloud:       s.sendToCloud,
		WiFi:              s.prefs.WiFiSSID,
		IP:                s.cfg.IP,
	}
}

// Tare zeroes the current reading and pushes a frame.
func (s *Scale) Tare() {
	s.mu.Lock()
	s.tareRaw = s.rawLocked()
	frame := s.frameLocked()
	s.mu.Unlock()

	logging.Info("Scale tared")
	s.emit(frame)
}

// SetCalibrationFactor stores a new factor.
func (s *Scale) SetCalibrationFactor(f float64) error {
	if !(f > 0) || math.IsInf(f, 0) {
		return ErrInvalidFactor
	}

	s.mu.Lock()
	s.prefs.CalibrationFactor = f
	err := s.store.Save(s.prefs)
	frame := s.frameLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	logging.Info("Calibration factor stored", zap.Float64("factor", f))
	s.emit(frame)
	return nil
}

// SetAPIKey stores key and validates it against the emulated cloud.
func (s *Scale) SetAPIKey(key string) (bool, string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, "", ErrMissingAPIKey
	}
	valid, name := s.validateKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.APIKey = key
	s.apiValid = valid
	s.displayName = name
	if err := s.store.Save(s.prefs); err != nil {
		return false, "", err
	}
	return valid, name, nil
}

// DeleteAPIKey clears the stored key.
func (s *Scale) DeleteAPIKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.APIKey = ""
	s.apiValid = false
	s.displayName = ""
	return s.store.Save(s.prefs)
}

// ResetWiFi forgets the WiFi network and reboots.
func (s *Scale) ResetWiFi() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.WiFiSSID = ""
	if err := s.store.Save(s.prefs); err != nil {
		return err
	}
	s.bootLocked(s.prefs)
	return nil
}

// FactoryReset erases every preference and reboots.
func (s *Scale) FactoryReset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Clear(); err != nil {
		return err
	}
	s.bootLocked(DefaultPrefs())
	return nil
}

// PushWeight sends grams for the presented tag to the cloud. The tag is
// consumed.
func (s *Scale) PushWeight(grams int) error {
	if grams <= 0 {
		return ErrInvalidWeight
	}

	s.mu.Lock()
	if s.uid == "" {
		s.mu.Unlock()
		return ErrNoTag
	}
	if !s.apiValid {
		s.mu.Unlock()
		return ErrInvalidAPIKey
	}
	logging.Info("Weight pushed to cloud", zap.String("uid", s.uid), zap.Int("grams", grams))
	s.uid = ""
	s.countdown = 0
	s.sendToCloud = "success"
	s.resultLeft = resultTicks
	frame := s.frameLocked()
	s.mu.Unlock()

	s.emit(frame)
	return nil
}

// Place puts grams on the scale.
func (s *Scale) Place(grams float64) {
	s.mu.Lock()
	s.load = grams
	frame := s.frameLocked()
	s.mu.Unlock()
	s.emit(frame)
}

// PresentTag simulates an RFID tag on the reader and starts the automatic
// push countdown.
func (s *Scale) PresentTag(uid string) {
	s.mu.Lock()
	s.uid = uid
	if uid != "" && s.cfg.AutoPushDelay > 0 {
		s.countdown = s.cfg.AutoPushDelay
		s.sendToCloud = strconv.Itoa(s.countdown)
	} else {
		s.countdown = 0
		s.sendToCloud = ""
	}
	frame := s.frameLocked()
	s.mu.Unlock()
	s.emit(frame)
}

// Tick advances the automatic push by one step. The server calls it once
// a second.
func (s *Scale) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.countdown > 0:
		s.countdown--
		if s.countdown == 0 {
			s.sendToCloud = "send"
		} else {
			s.sendToCloud = strconv.Itoa(s.countdown)
		}
	case s.sendToCloud == "send":
		if s.apiValid {
			s.sendToCloud = "success"
		} else {
			s.sendToCloud = "error"
		}
		s.resultLeft = resultTicks
	case s.resultLeft > 0:
		s.resultLeft--
		if s.resultLeft == 0 {
			s.sendToCloud = ""
		}
	}
}

func (s *Scale) validateKey(key string) (bool, string) {
	if len(s.cfg.ValidKeys) == 0 {
		return true, "TigerTag user"
	}
	name, ok := s.cfg.ValidKeys[key]
	return ok, name
}

func (s *Scale) bootLocked(prefs Prefs) {
	s.prefs = prefs
	s.apiValid, s.displayName = false, ""
	if prefs.APIKey != "" {
		s.apiValid, s.displayName = s.validateKey(prefs.APIKey)
	}
	s.uid = ""
	s.countdown = 0
	s.resultLeft = 0
	s.sendToCloud = ""
	s.bootedAt = s.clk.Now()
	// The firmware tares on boot.
	s.tareRaw = s.rawLocked()
}

func (s *Scale) rawLocked() float64 {
	return baselineRaw + s.load*s.cfg.TrueFactor
}

// weightLocked mirrors HX711::get_units: (raw - offset) / factor, one decimal.
func (s *Scale) weightLocked() float64 {
	w := (s.rawLocked() - s.tareRaw) / s.prefs.CalibrationFactor
	return math.Round(w*10) / 10
}

func (s *Scale) frameLocked() Frame {
	return Frame{Weight: s.weightLocked(), UID: s.uid}
}

func (s *Scale) emit(frame Frame) {
	s.mu.Lock()
	listeners := make([]func(Frame), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(frame)
	}
}

func uidHex(uid string) string {
	n, err := strconv.ParseUint(uid, 10, 64)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%X", n)
}
