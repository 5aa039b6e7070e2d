package command

import (
	"context"

	"github.com/codewiresh/h1link/internal/device"
)

func (h *handlers) covertInterview(on bool) Handler {
	return func(context.Context, *Request) Reply {
		h.svc.Functions.SetCovertInterviewMode(on)
		return status(device.StatusSuccess)
	}
}

func (h *handlers) fileInfo(_ context.Context, req *Request) Reply {
	st, info := h.svc.System.PlayGetFileInfo(req.String("filename"))
	if !st.OK() {
		return status(st)
	}
	return Reply{Status: st, Fields: map[string]any{"info": info}}
}

func (h *handlers) initPool(_ context.Context, req *Request) Reply {
	return status(h.svc.System.MemInitpool(req.Int("size")))
}

func (h *handlers) liveStream(_ context.Context, req *Request) Reply {
	return status(h.svc.System.LiveStream(req.Int("camera"), req.Bool("on")))
}

func (h *handlers) liveViewStart(_ context.Context, req *Request) Reply {
	return status(h.svc.System.LiveViewStart(
		req.Int("x"), req.Int("y"), req.Int("cx"), req.Int("cy"),
		req.Int("camera"), req.Int("display"),
	))
}

func (h *handlers) liveViewStop(_ context.Context, req *Request) Reply {
	return status(h.svc.System.LiveViewStop(req.Int("camera")))
}

// recordInitCam fills every setting the request leaves out from the
// 1080p30 defaults. A setting of the wrong type also takes its default.
func (h *handlers) recordInitCam(_ context.Context, req *Request) Reply {
	c := device.DefaultCameraInit(req.Int("camera"))
	c.Width = req.IntOr("width", c.Width)
	c.Height = req.IntOr("height", c.Height)
	c.FPS = req.IntOr("fps", c.FPS)
	c.GOP = req.IntOr("gop", c.GOP)
	c.ControlRate = req.IntOr("controlrate", c.ControlRate)
	c.Quality = req.IntOr("quality", c.Quality)
	c.Bitrate = req.IntOr("bitrate", c.Bitrate)
	c.BufferSize = req.IntOr("buffersize", c.BufferSize)
	c.Audio = req.IntOr("audioid", c.Audio)
	return status(h.svc.System.RecordInitCam(c))
}

func (h *handlers) setOSDContent(_ context.Context, req *Request) Reply {
	return status(h.svc.System.SetOSDContent(
		req.IntOr("x", 0), req.IntOr("y", 0),
		req.Int("camera"), req.Int("block"), req.String("content"),
	))
}

func (h *handlers) setOSDStats(_ context.Context, req *Request) Reply {
	return status(h.svc.System.SetOSDStats(req.Int("stats")))
}

func (h *handlers) pmSnapshot(_ context.Context, req *Request) Reply {
	return status(h.svc.System.Snapshot(req.Int("camera"), req.String("filename")))
}

func (h *handlers) streamStartFile(_ context.Context, req *Request) Reply {
	return status(h.svc.System.StreamStartFile(req.String("filename")))
}

// streamFileDuration opens the file to measure it; the play handle is
// released once the reply is out.
func (h *handlers) streamFileDuration(_ context.Context, req *Request) Reply {
	st, d := h.svc.System.StreamFileDuration(req.String("filename"))
	return Reply{
		Status: st,
		Fields: map[string]any{"duration": d},
		Then: func() {
			if rc := h.svc.System.PlayCloseFile(); !rc.OK() {
				h.logger.Warn("closing play file", "status", rc)
			}
		},
	}
}

func (h *handlers) startRecord(fn func(name string, camera, pretime int) device.Status) Handler {
	return func(_ context.Context, req *Request) Reply {
		return status(fn(req.String("filename"), req.Int("camera"), req.Int("pretime")))
	}
}

func (h *handlers) stopRecord(fn func(camera int) device.Status) Handler {
	return func(_ context.Context, req *Request) Reply {
		return status(fn(req.Int("camera")))
	}
}

func (h *handlers) recSync(fn func(name string, camera int) device.Status) Handler {
	return func(_ context.Context, req *Request) Reply {
		return status(fn(req.String("filename"), req.Int("camera")))
	}
}
