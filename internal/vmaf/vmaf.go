//go:build vmaf

// Package vmaf provides CGO bindings to libvmaf for perceptual quality
// scoring.
package vmaf

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lvmaf

#include <stdlib.h>
#include <libvmaf/libvmaf.h>
*/
import "C"
import (
	"fmt"
	"unsafe"

	"github.com/gopq/gopq/internal/errors"
	"github.com/gopq/gopq/internal/quality"
	"github.com/gopq/gopq/internal/raw"
)

// Scorer holds a libvmaf model path and thread count; each Score call
// creates its own libvmaf context and loads the model. It implements
// quality.Scorer.
type Scorer struct {
	modelPath string
	threads   int
}

// New creates a libvmaf-backed scorer using the model at modelPath.
func New(modelPath string, threads int) *Scorer {
	if threads < 1 {
		threads = 1
	}
	return &Scorer{modelPath: modelPath, threads: threads}
}

// Score computes the pooled VMAF score between ref and dis over the
// half-open range [from, to), reading every stride-th frame's luma.
func (s *Scorer) Score(ref, dis *raw.Sample, from, to, stride int) (float64, error) {
	cfg := C.VmafConfiguration{
		log_level:    C.VMAF_LOG_LEVEL_NONE,
		n_threads:    C.uint(s.threads),
		n_subsample:  C.uint(stride),
		cpumask:      0,
		gpu_mask:     0,
	}

	var ctx *C.VmafContext
	if rc := C.vmaf_init(&ctx, cfg); rc != 0 {
		return 0, errors.NewScorerError(fmt.Sprintf("vmaf_init failed: %d", int(rc)), nil)
	}
	defer C.vmaf_close(ctx)

	var model *C.VmafModel
	modelCfg := C.VmafModelConfig{}
	cPath := C.CString(s.modelPath)
	defer C.free(unsafe.Pointer(cPath))
	if rc := C.vmaf_model_load_from_path(&model, &modelCfg, cPath); rc != 0 {
		return 0, errors.NewScorerError(
			fmt.Sprintf("load model %s: %d", s.modelPath, int(rc)), nil)
	}
	defer C.vmaf_model_destroy(model)

	if rc := C.vmaf_use_features_from_model(ctx, model); rc != 0 {
		return 0, errors.NewScorerError(fmt.Sprintf("use model features: %d", int(rc)), nil)
	}

	it := quality.NewIterator(ref, dis, from, to, 1)
	var index C.uint
	for {
		pair, ok := it.Next()
		if !ok {
			break
		}
		var refPic, disPic C.VmafPicture
		if err := fillPicture(ctx, &refPic, pair.Ref, pair.Geom); err != nil {
			return 0, err
		}
		if err := fillPicture(ctx, &disPic, pair.Dis, pair.Geom); err != nil {
			C.vmaf_picture_unref(&refPic)
			return 0, err
		}
		if rc := C.vmaf_read_pictures(ctx, &refPic, &disPic, index); rc != 0 {
			return 0, errors.NewScorerError(
				fmt.Sprintf("read pictures at %d: %d", int(index), int(rc)), nil)
		}
		index++
	}
	if rc := C.vmaf_read_pictures(ctx, nil, nil, 0); rc != 0 {
		return 0, errors.NewScorerError(fmt.Sprintf("flush pictures: %d", int(rc)), nil)
	}

	var score C.double
	rc := C.vmaf_score_pooled(ctx, model, C.VMAF_POOL_METHOD_MEAN, &score, 0, index-1)
	if rc != 0 {
		return 0, errors.NewScorerError(fmt.Sprintf("pooled score: %d", int(rc)), nil)
	}
	return float64(score), nil
}

// fillPicture allocates a libvmaf picture and copies one luma plane into
// it. Chroma planes are zeroed; the default models read luma only.
func fillPicture(ctx *C.VmafContext, pic *C.VmafPicture, y []byte, geom raw.Geometry) error {
	rc := C.vmaf_picture_alloc(pic, C.VMAF_PIX_FMT_YUV420P, 8,
		C.uint(geom.Width), C.uint(geom.Height))
	if rc != 0 {
		return errors.NewScorerError(fmt.Sprintf("picture alloc: %d", int(rc)), nil)
	}

	dst := unsafe.Slice((*byte)(pic.data[0]), int(pic.stride[0])*geom.Height)
	stride := int(pic.stride[0])
	for row := 0; row < geom.Height; row++ {
		copy(dst[row*stride:row*stride+geom.Width], y[row*geom.Width:(row+1)*geom.Width])
	}
	return nil
}
