package client

import (
	"context"
	"fmt"
	"time"
)

// RecordPlan drives a bench test: Count recordings of Length on Camera,
// Gap apart, optionally followed by an in-car upload after UploadDelay.
type RecordPlan struct {
	Camera      int
	Count       int
	Length      time.Duration
	Gap         time.Duration
	Upload      bool
	UploadDelay time.Duration
}

// DefaultRecordPlan records one 5 second clip on camera 1.
func DefaultRecordPlan() RecordPlan {
	return RecordPlan{
		Camera:      1,
		Count:       1,
		Length:      5 * time.Second,
		Gap:         5 * time.Second,
		UploadDelay: 10 * time.Second,
	}
}

// RecordStep is reported after each command the plan sends.
type RecordStep struct {
	Index int // 1-based recording number; 0 for the upload
	Reply Reply
}

// RunRecordPlan executes p. A device error stops the plan and is returned
// together with the offending reply via progress.
func (c *Client) RunRecordPlan(ctx context.Context, p RecordPlan, progress func(RecordStep)) error {
	if progress == nil {
		progress = func(RecordStep) {}
	}
	call := func(index int, command string, fields map[string]any) error {
		reply, err := c.Call(ctx, command, fields)
		if err != nil {
			return err
		}
		progress(RecordStep{Index: index, Reply: reply})
		if st := reply.Status(); !st.OK() {
			return fmt.Errorf("%s returned %s", command, st)
		}
		return nil
	}

	for i := 1; i <= p.Count; i++ {
		if err := call(i, "record", map[string]any{"camera": p.Camera}); err != nil {
			return fmt.Errorf("recording %d: %w", i, err)
		}
		if err := sleep(ctx, p.Length); err != nil {
			return err
		}
		if err := call(i, "stoprecord", map[string]any{"camera": p.Camera}); err != nil {
			return fmt.Errorf("recording %d: %w", i, err)
		}
		if i < p.Count || p.Upload {
			if err := sleep(ctx, p.Gap); err != nil {
				return err
			}
		}
	}

	if !p.Upload {
		return nil
	}
	if err := sleep(ctx, p.UploadDelay); err != nil {
		return err
	}
	if err := call(0, "upload", map[string]any{"icv": true}); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
