package command

import (
	"context"
	"maps"
	"os"
	"slices"

	"github.com/codewiresh/h1link/internal/device"
	"github.com/codewiresh/h1link/internal/sysinfo"
)

func (h *handlers) ping(context.Context, *Request) Reply {
	return status(device.StatusSuccess)
}

// readFile streams a file after the reply. Relative names are taken from
// the XML directory.
func (h *handlers) readFile(_ context.Context, req *Request) Reply {
	name := h.svc.Paths.Resolve(req.String("filename"))
	f, err := os.Open(name)
	if err != nil {
		h.logger.Debug("could not open requested file", "file", name, "error", err)
		return status(device.StatusError)
	}
	if info, err := f.Stat(); err != nil || info.IsDir() {
		f.Close()
		h.logger.Debug("requested file is not readable", "file", name)
		return status(device.StatusError)
	}
	return Reply{Status: device.StatusSuccess, Stream: f}
}

func (h *handlers) record(_ context.Context, req *Request) Reply {
	return status(h.svc.Functions.StartRecord(req.Int("camera"), req.IntOr("pre", -1)))
}

func (h *handlers) stopRecording(_ context.Context, req *Request) Reply {
	return status(h.svc.Functions.StopRecord(req.Int("camera")))
}

func (h *handlers) setMic(_ context.Context, req *Request) Reply {
	return status(device.FromBool(h.svc.Functions.Mute(req.String("mic"), req.Bool("mute"))))
}

type mic struct {
	Name string `json:"name"`
	Mute bool   `json:"mute"`
}

// getMic reports one microphone when "mic" names it, otherwise all of
// them in name order.
func (h *handlers) getMic(_ context.Context, req *Request) Reply {
	state := h.svc.Functions.MicMuteState()
	mics := []mic{}
	st := device.StatusSuccess
	if name, ok := req.LookupString("mic"); ok {
		if m, found := state[name]; found {
			mics = append(mics, mic{name, m})
		} else {
			st = device.StatusError
		}
	} else {
		for _, name := range slices.Sorted(maps.Keys(state)) {
			mics = append(mics, mic{name, state[name]})
		}
	}
	return Reply{Status: st, Fields: map[string]any{"mics": mics}}
}

func (h *handlers) shutdown(context.Context, *Request) Reply {
	h.svc.Functions.Shutdown()
	return status(device.StatusSuccess)
}

func (h *handlers) snapshot(_ context.Context, req *Request) Reply {
	camera := req.Int("camera")
	if camera < 0 || camera >= h.cameras {
		h.logger.Debug("snapshot camera out of range", "camera", camera, "cameras", h.cameras)
		return status(device.StatusError)
	}
	st, file := h.svc.Functions.CaptureSnapshot(camera)
	if !st.OK() {
		return status(st)
	}
	return Reply{Status: st, Fields: map[string]any{"filename": file}}
}

func (h *handlers) paths(context.Context, *Request) Reply {
	p := h.svc.Paths
	return Reply{Status: device.StatusSuccess, Fields: map[string]any{
		"videos":   p.Videos,
		"xml":      p.XML,
		"xmlfirst": p.XMLFirst,
		"snapshot": p.Snapshot,
		"failsafe": p.Failsafe,
		"cache":    p.Cache,
		"focus_x1": p.FocusX1DCIM(),
	}}
}

// space reports the storage volumes in name order. A volume that cannot be
// read is reported as empty.
func (h *handlers) space(context.Context, *Request) Reply {
	p := h.svc.Paths
	volumes := []struct{ name, path string }{
		{"failsafe", p.Failsafe},
		{"videos", p.Videos},
		{"xml", p.XML},
	}
	out := make([]sysinfo.Volume, 0, len(volumes))
	for _, v := range volumes {
		vol, err := sysinfo.Space(v.name, v.path)
		if err != nil {
			h.logger.Debug("reading volume", "volume", v.name, "error", err)
		}
		out = append(out, vol)
	}
	return Reply{Status: device.StatusSuccess, Fields: map[string]any{"volumes": out}}
}

// modifyEvent forwards the string members of "event"; other members are
// ignored.
func (h *handlers) modifyEvent(_ context.Context, req *Request) Reply {
	obj, _ := req.LookupObject("event")
	values := make(map[string]string, len(obj))
	for k, v := range obj {
		if s, ok := v.(string); ok {
			values[k] = s
		}
	}
	return status(h.svc.Functions.ModifyEvent(req.String("eventname"), values))
}

func (h *handlers) getEvent(_ context.Context, req *Request) Reply {
	st, fields := h.svc.Functions.GetEvent(req.String("eventname"))
	if !st.OK() {
		return status(st)
	}
	if fields == nil {
		fields = map[string]string{}
	}
	return Reply{Status: st, Fields: map[string]any{"event": fields}}
}

func (h *handlers) bookmark(_ context.Context, req *Request) Reply {
	return status(h.svc.Functions.Bookmark(req.Int("camera")))
}

func (h *handlers) eventList(context.Context, *Request) Reply {
	st, events := h.svc.Functions.ListEvents()
	if !st.OK() {
		return status(st)
	}
	return Reply{Status: st, Fields: map[string]any{"events": nonNil(events)}}
}

func (h *handlers) pendingEventList(context.Context, *Request) Reply {
	events := slices.Sorted(slices.Values(h.svc.Functions.PendingEvents()))
	return Reply{Status: device.StatusSuccess, Fields: map[string]any{"events": nonNil(events)}}
}

func (h *handlers) statusReport(context.Context, *Request) Reply {
	fields, err := toFields(h.svc.Functions.Report())
	if err != nil {
		h.logger.Error("encoding status report", "error", err)
		return status(device.StatusError)
	}
	now := h.now()
	fields["date"] = now.Format("01/02/2006")
	fields["time"] = now.Format("03:04:05 PM")
	return Reply{Status: device.StatusSuccess, Fields: fields}
}

func (h *handlers) ls(_ context.Context, req *Request) Reply {
	dir := req.String("path")
	fields := map[string]any{"path": dir}

	opts := sysinfo.ListOptions{
		Sort:    sysinfo.SortOrder(req.StringOr("sort", string(sysinfo.SortName))),
		Reverse: req.BoolOr("reverse", false),
	}
	if filters, ok := req.Strings("filters"); ok {
		opts.Filters = filters
		raw, _ := req.LookupArray("filters")
		fields["filters"] = raw
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Reply{Status: device.StatusError, Fields: fields}
	}
	files, err := sysinfo.List(dir, opts)
	if err != nil {
		h.logger.Debug("listing directory", "path", dir, "error", err)
		return Reply{Status: device.StatusError, Fields: fields}
	}
	fields["files"] = files
	return Reply{Status: device.StatusSuccess, Fields: fields}
}

// network reports the uplink address, gateway and resolvers. With "all"
// it also lists every interface and the routing table.
func (h *handlers) network(_ context.Context, req *Request) Reply {
	fields := map[string]any{}
	if req.BoolOr("all", false) {
		ifaces, err := h.host.Interfaces()
		if err != nil {
			h.logger.Debug("listing interfaces", "error", err)
			ifaces = []sysinfo.Interface{}
		}
		fields["interfaces"] = ifaces

		routes, err := h.host.Routes()
		if err != nil {
			h.logger.Debug("reading routes", "error", err)
			routes = []sysinfo.Route{}
		}
		fields["routes"] = routes
	}

	ip, mask := h.host.WLANAddress()
	fields["ip"] = ip
	fields["netmask"] = mask
	fields["gatewayip"] = h.host.Gateway()
	fields["nameservers"] = h.host.Nameservers()

	nc := h.svc.Functions.Network()
	fields["wifi"] = map[string]any{"SSID": nc.SSID}
	cfg := nc.Config
	if cfg == nil {
		cfg = map[string]any{}
	}
	fields["config"] = cfg
	return Reply{Status: device.StatusSuccess, Fields: fields}
}

func (h *handlers) initialized(context.Context, *Request) Reply {
	return status(device.FromBool(h.svc.Functions.IsInitialized()))
}

func (h *handlers) gps(context.Context, *Request) Reply {
	fields, err := toFields(h.svc.Functions.GPS())
	if err != nil {
		h.logger.Error("encoding gps fix", "error", err)
		return status(device.StatusError)
	}
	return Reply{Status: device.StatusSuccess, Fields: fields}
}

func (h *handlers) login(_ context.Context, req *Request) Reply {
	ok, msg := h.svc.Functions.Login(
		req.String("officer"), req.String("password"),
		req.StringOr("partner", ""), req.StringOr("unit", ""),
	)
	return Reply{Status: device.FromBool(ok), Fields: map[string]any{"errormsg": msg}}
}

func (h *handlers) logout(context.Context, *Request) Reply {
	h.svc.Functions.Logout()
	return status(device.StatusSuccess)
}

func (h *handlers) streamFile(_ context.Context, req *Request) Reply {
	st, urlpath := h.svc.Functions.StreamFile(req.String("filename"))
	if !st.OK() {
		return status(st)
	}
	return Reply{Status: st, Fields: map[string]any{"urlpath": urlpath}}
}

// upload starts or stops the transfer service for the in-car ("icv") and
// body-worn ("bwc") sources. With neither flag it is a no-op.
func (h *handlers) upload(_ context.Context, req *Request) Reply {
	st := device.StatusSuccess
	for _, source := range []string{"icv", "bwc"} {
		on, ok := req.LookupBool(source)
		if !ok {
			continue
		}
		if on {
			st = h.svc.System.StartTransfer()
		} else {
			st = h.svc.System.StopTransfer()
		}
	}
	return status(st)
}

func (h *handlers) sound(context.Context, *Request) Reply {
	h.svc.Functions.PlaySound()
	return status(device.StatusSuccess)
}

func (h *handlers) trigger(_ context.Context, req *Request) Reply {
	h.svc.Functions.HandleTrigger(req.Int("code"))
	return status(device.StatusSuccess)
}

func (h *handlers) version(context.Context, *Request) Reply {
	fields := make(map[string]any)
	for k, v := range h.svc.Functions.Versions() {
		fields[k] = v
	}
	return Reply{Status: device.StatusSuccess, Fields: fields}
}

var volumeDevices = []string{"wmic1", "wmic2", "speaker"}

type volumeLevel struct {
	Device  string `json:"device"`
	Percent int    `json:"percent"`
}

// volume lists every level when no device is named, otherwise sets the
// named device to "percent".
func (h *handlers) volume(_ context.Context, req *Request) Reply {
	dev, ok := req.LookupString("device")
	if !ok {
		levels := make([]volumeLevel, 0, len(volumeDevices))
		for _, d := range volumeDevices {
			levels = append(levels, volumeLevel{d, h.svc.Functions.Volume(d)})
		}
		return Reply{Status: device.StatusSuccess, Fields: map[string]any{"volumes": levels}}
	}

	percent, ok := req.LookupInt("percent")
	if !ok {
		h.logger.Debug("volume without percent", "device", dev)
		return status(device.StatusError)
	}
	return status(device.FromBool(h.svc.Functions.SetVolume(dev, percent)))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
