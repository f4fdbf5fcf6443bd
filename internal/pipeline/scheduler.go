package pipeline

import (
	"context"
	"image"
	"log"

	"godseye/internal/detect"
	"godseye/internal/identity"
)

// Resolver resolves a cropped probe region to an identity.
type Resolver interface {
	Resolve(ctx context.Context, probe image.Image) identity.Resolution
}

// Scheduler decides, per incoming frame, whether to invoke full inference
// or reuse the last detection set, and whether the boxes of an inference
// cycle attempt identity resolution or fall back to the spatial cache.
type Scheduler struct {
	detector detect.Detector
	resolver Resolver
	cache    *IdentityCache

	detectEvery  int
	resolveEvery int
	cropPadding  int

	frameIndex uint64
	faceIndex  uint64
	lastSet    []Detection
}

// SchedulerConfig holds scheduling parameters. Zero values use defaults.
type SchedulerConfig struct {
	DetectEvery  int // full inference every Nth frame
	ResolveEvery int // identity resolution every Nth frame, global
	BucketSize   int // identity cache quantization in pixels
	CropPadding  int // margin around boxes handed to the resolver
}

// NewScheduler creates a scheduler over the given detector and resolver.
// resolver may be nil; detections then carry the not-attempted sentinel.
func NewScheduler(detector detect.Detector, resolver Resolver, config SchedulerConfig) *Scheduler {
	detectEvery := config.DetectEvery
	if detectEvery <= 0 {
		detectEvery = DefaultDetectEvery
	}
	resolveEvery := config.ResolveEvery
	if resolveEvery <= 0 {
		resolveEvery = DefaultResolveEvery
	}
	cropPadding := config.CropPadding
	if cropPadding <= 0 {
		cropPadding = identity.DefaultCropPadding
	}

	return &Scheduler{
		detector:     detector,
		resolver:     resolver,
		cache:        NewIdentityCache(config.BucketSize),
		detectEvery:  detectEvery,
		resolveEvery: resolveEvery,
		cropPadding:  cropPadding,
	}
}

// FrameIndex returns the number of frames processed so far.
func (s *Scheduler) FrameIndex() uint64 {
	return s.frameIndex
}

// Detections returns the current detection set.
func (s *Scheduler) Detections() []Detection {
	return s.lastSet
}

// Process advances the frame counters and runs an inference cycle when the
// detect cadence is due, otherwise the prior set is reused unchanged.
// The returned bool reports whether inference ran this frame.
func (s *Scheduler) Process(ctx context.Context, frame image.Image) ([]Detection, bool) {
	s.frameIndex++
	s.faceIndex++

	if s.frameIndex%uint64(s.detectEvery) != 0 {
		return s.lastSet, false
	}

	s.lastSet = s.runInference(ctx, frame)
	return s.lastSet, true
}

// runInference invokes the detector, keeps person boxes only and attaches
// an identity to each. A detector failure yields an empty set; the cycle
// is not fatal to the pipeline.
func (s *Scheduler) runInference(ctx context.Context, frame image.Image) []Detection {
	objects, err := s.detector.Detect(ctx, frame)
	if err != nil {
		log.Printf("[Scheduler] Detection failed at frame %d: %v", s.frameIndex, err)
		return nil
	}

	resolveNow := s.faceIndex%uint64(s.resolveEvery) == 0

	var set []Detection
	for _, obj := range objects {
		if obj.Class != detect.ClassPerson {
			continue
		}

		det := Detection{
			X1:         obj.X1,
			Y1:         obj.Y1,
			X2:         obj.X2,
			Y2:         obj.Y2,
			Confidence: obj.Confidence,
		}

		res := s.resolveBox(ctx, frame, &det, resolveNow)
		det.Identity = res.Identity
		det.IdentityConfidence = res.Confidence
		det.Known = res.Known

		set = append(set, det)
	}
	return set
}

// resolveBox attaches an identity to one box. On resolution cycles the
// resolver runs and its result is cached by screen region; on other cycles
// the region's cached value is reused, or the scanning placeholder when the
// box has moved into an unseen bucket.
func (s *Scheduler) resolveBox(ctx context.Context, frame image.Image, det *Detection, resolveNow bool) identity.Resolution {
	key := s.cache.KeyFor(det.X1, det.Y1, det.X2, det.Y2)

	if !resolveNow {
		if cached, ok := s.cache.Lookup(key); ok {
			return identity.Resolution{
				Identity:   cached.Identity,
				Confidence: cached.Confidence,
				Known:      cached.Known,
				Attempted:  true,
			}
		}
		return identity.Scanning()
	}

	if s.resolver == nil {
		return identity.NotAttempted()
	}

	crop := identity.PadCrop(frame, det.X1, det.Y1, det.X2, det.Y2, s.cropPadding)
	res := s.resolver.Resolve(ctx, crop)
	if res.Attempted {
		s.cache.Store(key, CachedIdentity{
			Identity:   res.Identity,
			Confidence: res.Confidence,
			Known:      res.Known,
		})
	}
	return res
}
