package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/codewiresh/h1link/internal/device"
	"github.com/codewiresh/h1link/internal/sysinfo"
)

type handlers struct {
	svc     device.Services
	cameras int
	host    sysinfo.Host
	now     func() time.Time
	logger  *slog.Logger
}

// simple adapts a no-argument collaborator call.
func simple(fn func() device.Status) Handler {
	return func(context.Context, *Request) Reply { return status(fn()) }
}

func (h *handlers) table() []Spec {
	sys := h.svc.System
	var specs []Spec

	// connection manager
	specs = append(specs,
		Spec{Name: "cm_starttransfer", Handle: simple(sys.StartTransfer)},
		Spec{Name: "cm_stoptransfer", Handle: simple(sys.StopTransfer)},
		Spec{Name: "cm_startx1import", Handle: simple(sys.StartX1Import)},
		Spec{Name: "cm_stopx1import", Handle: simple(sys.StopX1Import)},
		Spec{Name: "cm_remakeconnection", Handle: simple(sys.RemakeConnection)},
	)

	// metadata manager
	specs = append(specs,
		Spec{Name: "mm_wmicenable", Handle: simple(sys.EnableWMICs)},
		Spec{Name: "mm_wmicdisable", Handle: simple(sys.DisableWMICs)},
		Spec{Name: "mm_wmiccoverton", Handle: simple(sys.WMICCovertOn)},
		Spec{Name: "mm_wmiccovertoff", Handle: simple(sys.WMICCovertOff)},
		Spec{Name: "mm_wmicon", Handle: simple(sys.WMICOn)},
		Spec{Name: "mm_wmicoff", Handle: simple(sys.WMICOff)},
		Spec{Name: "mm_covertinterviewon", Handle: h.covertInterview(true)},
		Spec{Name: "mm_covertinterviewoff", Handle: h.covertInterview(false)},
		Spec{Name: "mm_speakermuteon", Handle: simple(sys.SpeakerMuteOn)},
		Spec{Name: "mm_speakermuteoff", Handle: simple(sys.SpeakerMuteOff)},
	)

	// playback and recording pipeline
	specs = append(specs,
		Spec{Name: "pm_fileinfo", Required: []Field{Str("filename")}, Handle: h.fileInfo},
		Spec{Name: "pm_initpool", Required: []Field{Int("size")}, Handle: h.initPool},
		Spec{Name: "pm_livestream", Required: []Field{Int("camera"), Bool("on")}, Handle: h.liveStream},
		Spec{Name: "pm_liveviewstart", Required: []Field{Int("camera"), Int("x"), Int("y"), Int("cx"), Int("cy"), Int("display")}, Handle: h.liveViewStart},
		Spec{Name: "pm_liveviewstop", Required: []Field{Int("camera")}, Handle: h.liveViewStop},
		Spec{Name: "pm_recordinitcam", Required: []Field{Int("camera")}, Handle: h.recordInitCam},
		Spec{Name: "pm_setosdcontent", Required: []Field{Int("camera"), Str("content"), Int("block")}, Handle: h.setOSDContent},
		Spec{Name: "pm_setosdstats", Required: []Field{Int("stats")}, Handle: h.setOSDStats},
		Spec{Name: "pm_serverstart", Handle: simple(sys.ServerStart)},
		Spec{Name: "pm_serverstop", Handle: simple(sys.ServerStop)},
		Spec{Name: "pm_snapshot", Required: []Field{Int("camera"), Str("filename")}, Handle: h.pmSnapshot},
		Spec{Name: "pm_streamstartfile", Required: []Field{Str("filename")}, Handle: h.streamStartFile},
		Spec{Name: "pm_streamfileduration", Required: []Field{Str("filename")}, Handle: h.streamFileDuration},
		Spec{Name: "pm_streamstopfile", Handle: simple(sys.StreamStopFile)},
		Spec{Name: "pm_startrecordmp4", Required: []Field{Int("camera"), Str("filename"), Int("pretime")}, Handle: h.startRecord(sys.StartRecordMP4)},
		Spec{Name: "pm_stoprecordmp4", Required: []Field{Int("camera")}, Handle: h.stopRecord(sys.StopRecordMP4)},
		Spec{Name: "pm_startrecordts", Required: []Field{Int("camera"), Str("filename"), Int("pretime")}, Handle: h.startRecord(sys.StartRecordTS)},
		Spec{Name: "pm_stoprecordts", Required: []Field{Int("camera")}, Handle: h.stopRecord(sys.StopRecordTS)},
		Spec{Name: "pm_recsyncnextmp4", Required: []Field{Int("camera"), Str("filename")}, Handle: h.recSync(sys.RecSyncNextMP4)},
		Spec{Name: "pm_recsyncnextts", Required: []Field{Int("camera"), Str("filename")}, Handle: h.recSync(sys.RecSyncToNext)},
	)

	// general device commands
	specs = append(specs,
		Spec{Name: "ping", Handle: h.ping},
		Spec{Name: "readfile", Required: []Field{Str("filename")}, Handle: h.readFile},
		Spec{Name: "record", Required: []Field{Int("camera")}, Handle: h.record},
		Spec{Name: "stoprecord", Required: []Field{Int("camera")}, Handle: h.stopRecording},
		Spec{Name: "setmic", Required: []Field{Str("mic"), Bool("mute")}, Handle: h.setMic},
		Spec{Name: "getmic", Handle: h.getMic},
		Spec{Name: "shutdown", Handle: h.shutdown},
		Spec{Name: "snapshot", Required: []Field{Int("camera")}, Handle: h.snapshot},
		Spec{Name: "paths", Handle: h.paths},
		Spec{Name: "space", Handle: h.space},
		Spec{Name: "modifyevent", Required: []Field{Str("eventname"), Obj("event")}, Handle: h.modifyEvent},
		Spec{Name: "getevent", Required: []Field{Str("eventname")}, Handle: h.getEvent},
		Spec{Name: "bookmark", Required: []Field{Int("camera")}, Handle: h.bookmark},
		Spec{Name: "eventlist", Handle: h.eventList},
		Spec{Name: "pendingeventlist", Handle: h.pendingEventList},
		Spec{Name: "status", Handle: h.statusReport},
		Spec{Name: "ls", Required: []Field{Str("path")}, Handle: h.ls},
		Spec{Name: "network", Handle: h.network},
		Spec{Name: "init", Handle: h.initialized},
		Spec{Name: "gps", Handle: h.gps},
		Spec{Name: "login", Required: []Field{Str("officer"), Str("password")}, Handle: h.login},
		Spec{Name: "logout", Handle: h.logout},
		Spec{Name: "streamfile", Required: []Field{Str("filename")}, Handle: h.streamFile},
		Spec{Name: "upload", Handle: h.upload},
		Spec{Name: "sound", Handle: h.sound},
		Spec{Name: "trigger", Required: []Field{Int("code")}, Handle: h.trigger},
		Spec{Name: "version", Handle: h.version},
		Spec{Name: "volume", Handle: h.volume},
	)

	return specs
}
