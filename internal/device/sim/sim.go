// Package sim is an in-process recorder used for bench testing the link
// without camera hardware. Events, bookmarks and audio settings persist in
// a store.Store; recording, playback and session state live in memory.
package sim

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/codewiresh/h1link/internal/config"
	"github.com/codewiresh/h1link/internal/device"
	"github.com/codewiresh/h1link/internal/store"
)

const (
	storeTimeout = 5 * time.Second
	// Simulated recording rate used to derive playback durations.
	bytesPerSecond = 6000000 / 8
	defaultVolume  = 50
)

var (
	mics         = []string{"wmic1", "wmic2"}
	audioDevices = []string{"wmic1", "wmic2", "speaker"}
)

// Options configure a Simulator.
type Options struct {
	Store    store.Store
	Paths    device.Paths
	Cameras  int
	Officers []config.Officer
	Versions map[string]string
	SSID     string
	Logger   *slog.Logger
	Now      func() time.Time
	// OnShutdown runs when a client asks the device to power off.
	OnShutdown func()
}

type recording struct {
	event   string
	file    string
	started time.Time
}

type session struct {
	officer string
	name    string
	partner string
	unit    string
}

// Simulator implements device.SystemInterface and device.SystemFunctions.
type Simulator struct {
	opts   Options
	store  store.Store
	logger *slog.Logger

	mu          sync.Mutex
	recording   map[int]*recording
	liveView    map[int]bool
	liveStream  map[int]bool
	camInit     map[int]device.CameraInit
	osd         map[int]map[int]string
	osdStats    int
	playing     string
	streaming   string
	transfer    bool
	x1Import    bool
	wmics       bool
	wmicCovert  bool
	speakerMute bool
	covert      bool
	server      bool
	pool        int
	session     *session
	notices     []device.Notice
	seq         int
	shutdown    bool
}

var (
	_ device.SystemInterface = (*Simulator)(nil)
	_ device.SystemFunctions = (*Simulator)(nil)
)

// New creates a simulator over opts.Store.
func New(opts Options) (*Simulator, error) {
	if opts.Store == nil {
		return nil, errors.New("sim: store is required")
	}
	if opts.Cameras <= 0 {
		opts.Cameras = config.DefaultCameras
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Simulator{
		opts:       opts,
		store:      opts.Store,
		logger:     opts.Logger.With("component", "sim"),
		recording:  make(map[int]*recording),
		liveView:   make(map[int]bool),
		liveStream: make(map[int]bool),
		camInit:    make(map[int]device.CameraInit),
		osd:        make(map[int]map[int]string),
		wmics:      true,
	}, nil
}

func (s *Simulator) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

func (s *Simulator) validCamera(camera int) bool {
	return camera >= 0 && camera < s.opts.Cameras
}

// Connection manager

// StartTransfer uploads every pending event. The simulated uplink is
// instantaneous.
func (s *Simulator) StartTransfer() device.Status {
	ctx, cancel := s.ctx()
	defer cancel()

	pending, err := s.store.EventPending(ctx)
	if err != nil {
		s.logger.Error("listing pending events", "error", err)
		return device.StatusError
	}
	for _, name := range pending {
		if err := s.store.EventMarkUploaded(ctx, name); err != nil {
			s.logger.Error("uploading event", "event", name, "error", err)
			return device.StatusError
		}
	}
	s.mu.Lock()
	s.transfer = true
	s.mu.Unlock()
	s.logger.Info("transfer started", "uploaded", len(pending))
	return device.StatusSuccess
}

func (s *Simulator) StopTransfer() device.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfer = false
	return device.StatusSuccess
}

func (s *Simulator) StartX1Import() device.Status { return s.setFlag(&s.x1Import, true) }
func (s *Simulator) StopX1Import() device.Status  { return s.setFlag(&s.x1Import, false) }

func (s *Simulator) RemakeConnection() device.Status {
	s.logger.Info("reconnecting uplink")
	return device.StatusSuccess
}

// Metadata manager

func (s *Simulator) EnableWMICs() device.Status    { return s.setFlag(&s.wmics, true) }
func (s *Simulator) DisableWMICs() device.Status   { return s.setFlag(&s.wmics, false) }
func (s *Simulator) WMICCovertOn() device.Status   { return s.setFlag(&s.wmicCovert, true) }
func (s *Simulator) WMICCovertOff() device.Status  { return s.setFlag(&s.wmicCovert, false) }
func (s *Simulator) WMICOn() device.Status         { return s.setFlag(&s.wmics, true) }
func (s *Simulator) WMICOff() device.Status        { return s.setFlag(&s.wmics, false) }
func (s *Simulator) SpeakerMuteOn() device.Status  { return s.setFlag(&s.speakerMute, true) }
func (s *Simulator) SpeakerMuteOff() device.Status { return s.setFlag(&s.speakerMute, false) }

func (s *Simulator) setFlag(f *bool, v bool) device.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	*f = v
	return device.StatusSuccess
}

// Playback

// StreamFileDuration opens name for playback and reports its length in
// seconds, derived from the file size at the default bitrate.
func (s *Simulator) StreamFileDuration(name string) (device.Status, int32) {
	info, err := os.Stat(s.opts.Paths.Resolve(name))
	if err != nil || info.IsDir() {
		return device.StatusError, 0
	}
	s.mu.Lock()
	s.playing = name
	s.mu.Unlock()
	return device.StatusSuccess, int32(max(1, info.Size()/bytesPerSecond))
}

func (s *Simulator) StreamStartFile(name string) device.Status {
	if _, err := os.Stat(s.opts.Paths.Resolve(name)); err != nil {
		return device.StatusError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming = name
	return device.StatusSuccess
}

func (s *Simulator) StreamStopFile() device.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming == "" {
		return device.StatusError
	}
	s.streaming = ""
	return device.StatusSuccess
}

func (s *Simulator) PlayCloseFile() device.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing == "" {
		return device.StatusError
	}
	s.playing = ""
	return device.StatusSuccess
}

func (s *Simulator) PlayGetFileInfo(name string) (device.Status, string) {
	info, err := os.Stat(s.opts.Paths.Resolve(name))
	if err != nil || info.IsDir() {
		return device.StatusError, ""
	}
	return device.StatusSuccess, fmt.Sprintf("%s size=%d modified=%s",
		filepath.Base(name), info.Size(), info.ModTime().UTC().Format(time.RFC3339))
}

// On-screen display

func (s *Simulator) SetOSDContent(x, y, camera, block int, text string) device.Status {
	if !s.validCamera(camera) {
		return device.StatusError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.osd[camera] == nil {
		s.osd[camera] = make(map[int]string)
	}
	s.osd[camera][block] = text
	s.logger.Debug("osd content", "camera", camera, "block", block, "x", x, "y", y)
	return device.StatusSuccess
}

func (s *Simulator) SetOSDStats(flags int) device.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.osdStats = flags
	return device.StatusSuccess
}

// Recording pipeline

func (s *Simulator) StartRecordMP4(name string, camera, pretime int) device.Status {
	return s.startPipeline(name, camera)
}

func (s *Simulator) StartRecordTS(name string, camera, pretime int) device.Status {
	return s.startPipeline(name, camera)
}

func (s *Simulator) StopRecordMP4(camera int) device.Status { return s.stopPipeline(camera) }
func (s *Simulator) StopRecordTS(camera int) device.Status  { return s.stopPipeline(camera) }

func (s *Simulator) RecSyncNextMP4(name string, camera int) device.Status {
	return s.rollPipeline(name, camera)
}

func (s *Simulator) RecSyncToNext(name string, camera int) device.Status {
	return s.rollPipeline(name, camera)
}

func (s *Simulator) startPipeline(file string, camera int) device.Status {
	if !s.validCamera(camera) {
		return device.StatusError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.recording[camera]; busy {
		return device.StatusError
	}
	s.recording[camera] = &recording{file: file, started: s.opts.Now()}
	return device.StatusSuccess
}

func (s *Simulator) stopPipeline(camera int) device.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.recording[camera]; !busy {
		return device.StatusError
	}
	delete(s.recording, camera)
	return device.StatusSuccess
}

func (s *Simulator) rollPipeline(file string, camera int) device.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, busy := s.recording[camera]
	if !busy {
		return device.StatusError
	}
	rec.file = file
	return device.StatusSuccess
}

func (s *Simulator) ServerStart() device.Status { return s.setFlag(&s.server, true) }
func (s *Simulator) ServerStop() device.Status  { return s.setFlag(&s.server, false) }

func (s *Simulator) LiveStream(camera int, on bool) device.Status {
	if !s.validCamera(camera) {
		return device.StatusError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveStream[camera] = on
	return device.StatusSuccess
}

func (s *Simulator) LiveViewStart(x, y, cx, cy, camera, display int) device.Status {
	if !s.validCamera(camera) || cx <= 0 || cy <= 0 {
		return device.StatusError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveView[camera] = true
	return device.StatusSuccess
}

func (s *Simulator) LiveViewStop(camera int) device.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveView[camera] {
		return device.StatusError
	}
	delete(s.liveView, camera)
	return device.StatusSuccess
}

func (s *Simulator) MemInitpool(size int) device.Status {
	if size <= 0 {
		return device.StatusError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = size
	return device.StatusSuccess
}

func (s *Simulator) RecordInitCam(c device.CameraInit) device.Status {
	if !s.validCamera(c.Camera) || c.Width <= 0 || c.Height <= 0 || c.FPS <= 0 {
		return device.StatusError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camInit[c.Camera] = c
	return device.StatusSuccess
}

// Snapshot writes a still for camera to name.
func (s *Simulator) Snapshot(camera int, name string) device.Status {
	if !s.validCamera(camera) || name == "" {
		return device.StatusError
	}
	if err := writeStill(name, camera); err != nil {
		s.logger.Error("writing snapshot", "file", name, "error", err)
		return device.StatusError
	}
	return device.StatusSuccess
}

// writeStill renders a flat test card whose shade identifies the camera.
func writeStill(name string, camera int) error {
	img := image.NewGray(image.Rect(0, 0, 64, 36))
	shade := color.Gray{Y: uint8(64 + 48*camera)}
	for y := range 36 {
		for x := range 64 {
			img.SetGray(x, y, shade)
		}
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Application functions

// StartRecord starts a recording on camera and files a pending event for
// it. preSeconds < 0 keeps the configured pre-event buffer.
func (s *Simulator) StartRecord(camera, preSeconds int) device.Status {
	if !s.validCamera(camera) {
		return device.StatusError
	}
	now := s.opts.Now()
	name := fmt.Sprintf("%s_cam%d", now.UTC().Format("20060102_150405"), camera)
	file := filepath.Join(s.opts.Paths.Videos, name+".mp4")

	s.mu.Lock()
	if _, busy := s.recording[camera]; busy {
		s.mu.Unlock()
		return device.StatusError
	}
	s.recording[camera] = &recording{event: name, file: file, started: now}
	officer := ""
	if s.session != nil {
		officer = s.session.officer
	}
	s.mu.Unlock()

	fields := map[string]string{"file": file, "officer": officer}
	if preSeconds >= 0 {
		fields["pre"] = strconv.Itoa(preSeconds)
	}

	ctx, cancel := s.ctx()
	defer cancel()
	err := s.store.EventCreate(ctx, store.Event{
		Name:      name,
		Camera:    camera,
		Fields:    fields,
		Pending:   true,
		CreatedAt: now,
	})
	if err != nil {
		s.logger.Error("creating event", "event", name, "error", err)
		s.mu.Lock()
		delete(s.recording, camera)
		s.mu.Unlock()
		return device.StatusError
	}
	s.logger.Info("recording started", "camera", camera, "event", name)
	return device.StatusSuccess
}

func (s *Simulator) StopRecord(camera int) device.Status {
	st := s.stopPipeline(camera)
	if st.OK() {
		s.logger.Info("recording stopped", "camera", camera)
	}
	return st
}

func (s *Simulator) CaptureSnapshot(camera int) (device.Status, string) {
	name := filepath.Join(s.opts.Paths.Snapshot,
		fmt.Sprintf("cam%d_%s.png", camera, s.opts.Now().UTC().Format("20060102_150405.000")))
	st := s.Snapshot(camera, name)
	if !st.OK() {
		return st, ""
	}
	return st, name
}

// Bookmark marks the current moment on camera, tied to its running event
// if any.
func (s *Simulator) Bookmark(camera int) device.Status {
	if !s.validCamera(camera) {
		return device.StatusError
	}
	s.mu.Lock()
	event := ""
	if rec, busy := s.recording[camera]; busy {
		event = rec.event
	}
	s.mu.Unlock()

	ctx, cancel := s.ctx()
	defer cancel()
	id, err := s.store.BookmarkAdd(ctx, store.Bookmark{Camera: camera, Event: event, CreatedAt: s.opts.Now()})
	if err != nil {
		s.logger.Error("adding bookmark", "camera", camera, "error", err)
		return device.StatusError
	}
	s.logger.Debug("bookmark added", "camera", camera, "id", id)
	return device.StatusSuccess
}

func (s *Simulator) Mute(mic string, mute bool) bool {
	if !slices.Contains(mics, mic) {
		return false
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.store.SettingSet(ctx, "mic", mic, strconv.FormatBool(mute)); err != nil {
		s.logger.Error("saving mic state", "mic", mic, "error", err)
		return false
	}
	return true
}

func (s *Simulator) MicMuteState() map[string]bool {
	state := make(map[string]bool, len(mics))
	for _, m := range mics {
		state[m] = false
	}
	ctx, cancel := s.ctx()
	defer cancel()
	saved, err := s.store.SettingList(ctx, "mic")
	if err != nil {
		s.logger.Error("reading mic state", "error", err)
		return state
	}
	for k, v := range saved {
		if _, known := state[k]; known {
			state[k], _ = strconv.ParseBool(v)
		}
	}
	return state
}

func (s *Simulator) Volume(dev string) int {
	if !slices.Contains(audioDevices, dev) {
		return 0
	}
	ctx, cancel := s.ctx()
	defer cancel()
	v, found, err := s.store.SettingGet(ctx, "volume", dev)
	if err != nil || !found {
		return defaultVolume
	}
	pct, err := strconv.Atoi(v)
	if err != nil {
		return defaultVolume
	}
	return pct
}

func (s *Simulator) SetVolume(dev string, percent int) bool {
	if !slices.Contains(audioDevices, dev) || percent < 0 || percent > 100 {
		return false
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.store.SettingSet(ctx, "volume", dev, strconv.Itoa(percent)); err != nil {
		s.logger.Error("saving volume", "device", dev, "error", err)
		return false
	}
	return true
}

func (s *Simulator) PlaySound() { s.logger.Info("playing alert tone") }

func (s *Simulator) SetCovertInterviewMode(on bool) { s.setFlag(&s.covert, on) }

func (s *Simulator) ModifyEvent(name string, values map[string]string) device.Status {
	ctx, cancel := s.ctx()
	defer cancel()
	err := s.store.EventModify(ctx, name, values)
	if errors.Is(err, store.ErrNotFound) {
		return device.StatusError
	}
	if err != nil {
		s.logger.Error("modifying event", "event", name, "error", err)
		return device.StatusError
	}
	return device.StatusSuccess
}

func (s *Simulator) GetEvent(name string) (device.Status, map[string]string) {
	ctx, cancel := s.ctx()
	defer cancel()
	ev, err := s.store.EventGet(ctx, name)
	if err != nil {
		s.logger.Error("reading event", "event", name, "error", err)
		return device.StatusError, nil
	}
	if ev == nil {
		return device.StatusError, nil
	}
	fields := maps.Clone(ev.Fields)
	if fields == nil {
		fields = map[string]string{}
	}
	fields["camera"] = strconv.Itoa(ev.Camera)
	return device.StatusSuccess, fields
}

func (s *Simulator) ListEvents() (device.Status, []string) {
	ctx, cancel := s.ctx()
	defer cancel()
	names, err := s.store.EventList(ctx)
	if err != nil {
		s.logger.Error("listing events", "error", err)
		return device.StatusError, nil
	}
	return device.StatusSuccess, names
}

func (s *Simulator) PendingEvents() []string {
	ctx, cancel := s.ctx()
	defer cancel()
	names, err := s.store.EventPending(ctx)
	if err != nil {
		s.logger.Error("listing pending events", "error", err)
		return nil
	}
	return names
}

func (s *Simulator) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.shutdown
}

// Login checks officer against the configured bcrypt hashes.
func (s *Simulator) Login(officer, password, partner, unit string) (bool, string) {
	var match *config.Officer
	for i := range s.opts.Officers {
		if s.opts.Officers[i].ID == officer {
			match = &s.opts.Officers[i]
			break
		}
	}
	if match == nil {
		return false, "unknown officer"
	}
	if err := bcrypt.CompareHashAndPassword([]byte(match.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("login rejected", "officer", officer)
		return false, "invalid password"
	}

	s.mu.Lock()
	s.session = &session{officer: officer, name: match.Name, partner: partner, unit: unit}
	s.mu.Unlock()
	s.logger.Info("officer logged in", "officer", officer, "unit", unit)
	return true, ""
}

func (s *Simulator) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
}

func (s *Simulator) StreamFile(name string) (device.Status, string) {
	if st := s.StreamStartFile(name); !st.OK() {
		return st, ""
	}
	return device.StatusSuccess, "/stream/" + filepath.Base(name)
}

// HandleTrigger records a hardware trigger as a notice.
func (s *Simulator) HandleTrigger(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.notices = append(s.notices, device.Notice{
		Sequence: s.seq,
		Seconds:  int(s.opts.Now().Unix()),
		Notice:   "trigger",
		Code:     strconv.Itoa(code),
	})
	s.logger.Info("trigger", "code", code)
}

func (s *Simulator) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	s.logger.Info("shutdown requested")
	if s.opts.OnShutdown != nil {
		s.opts.OnShutdown()
	}
}

func (s *Simulator) Versions() map[string]string {
	v := maps.Clone(s.opts.Versions)
	if v == nil {
		v = make(map[string]string)
	}
	if _, set := v["firmware"]; !set {
		v["firmware"] = "simulator"
	}
	return v
}

func (s *Simulator) Report() device.Report {
	now := s.opts.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	r := device.Report{
		Notices:         append([]device.Notice{}, s.notices...),
		ErrorConditions: map[string]bool{},
		Initialized:     !s.shutdown,
		StreamingFile:   s.streaming,
		CovertMode:      s.covert,
		WLStatus:        "idle",
		PowerACC:        true,
		InputVoltage:    12,
		GPSStatus:       "simulated",
		PenDriveStatus:  "absent",
	}
	if s.transfer {
		r.WLStatus = "uploading"
	}
	if s.session != nil {
		r.Login = true
		r.User = s.session.name
		r.Officer = s.session.officer
		r.Partner = s.session.partner
		r.Unit = s.session.unit
	}
	for cam := range s.opts.Cameras {
		cs := device.CameraStatus{ID: cam, Resolution: "1920x1080"}
		if c, set := s.camInit[cam]; set {
			cs.Resolution = fmt.Sprintf("%dx%d", c.Width, c.Height)
		}
		if rec, busy := s.recording[cam]; busy {
			cs.Recording = true
			cs.PostRecordingEnd = int(now.Sub(rec.started).Seconds())
		}
		r.Cameras = append(r.Cameras, cs)
	}
	return r
}

func (s *Simulator) GPS() device.GPSFix {
	return device.GPSFix{
		Latitude:   47.6062,
		Longitude:  -122.3321,
		Altitude:   56,
		Time:       s.opts.Now().UTC().Format(time.RFC3339),
		Satellites: 8,
		Lock:       1,
	}
}

func (s *Simulator) Network() device.NetworkConfig {
	return device.NetworkConfig{
		SSID:   s.opts.SSID,
		Config: map[string]any{"mode": "simulated", "dhcp": true},
	}
}
