//go:build linux && cgo && egl

package egl

/*
#cgo LDFLAGS: -lEGL -lGL
#include <stdint.h>
#include <stdlib.h>
#include <EGL/egl.h>
#include <EGL/eglext.h>
#include <GL/gl.h>
#include <GL/glext.h>

typedef struct {
	EGLDisplay dpy;
	EGLContext ctx;
	PFNEGLCREATEIMAGEKHRPROC create_image;
	PFNEGLDESTROYIMAGEKHRPROC destroy_image;
	PFNEGLEXPORTDMABUFIMAGEQUERYMESAPROC export_query;
	PFNEGLEXPORTDMABUFIMAGEMESAPROC export_image;
	PFNGLEGLIMAGETARGETTEXTURE2DOESPROC image_target;
} txs_egl;

enum {
	TXS_OK = 0,
	TXS_GET_DISPLAY,
	TXS_INITIALIZE,
	TXS_BIND_API,
	TXS_CHOOSE_CONFIG,
	TXS_CREATE_CONTEXT,
	TXS_MAKE_CURRENT,
	TXS_RESOLVE_BASE = 100
};

static int txs_open(txs_egl *e) {
	e->dpy = eglGetDisplay(EGL_DEFAULT_DISPLAY);
	if (e->dpy == EGL_NO_DISPLAY) return TXS_GET_DISPLAY;
	if (!eglInitialize(e->dpy, NULL, NULL)) return TXS_INITIALIZE;
	if (!eglBindAPI(EGL_OPENGL_API)) return TXS_BIND_API;

	const EGLint attribs[] = { EGL_RENDERABLE_TYPE, EGL_OPENGL_BIT, EGL_NONE };
	EGLConfig cfg;
	EGLint n = 0;
	if (!eglChooseConfig(e->dpy, attribs, &cfg, 1, &n) || n < 1) return TXS_CHOOSE_CONFIG;

	e->ctx = eglCreateContext(e->dpy, cfg, EGL_NO_CONTEXT, NULL);
	if (e->ctx == EGL_NO_CONTEXT) return TXS_CREATE_CONTEXT;
	if (!eglMakeCurrent(e->dpy, EGL_NO_SURFACE, EGL_NO_SURFACE, e->ctx)) return TXS_MAKE_CURRENT;

	e->create_image = (PFNEGLCREATEIMAGEKHRPROC)eglGetProcAddress("eglCreateImageKHR");
	if (!e->create_image) return TXS_RESOLVE_BASE + 0;
	e->destroy_image = (PFNEGLDESTROYIMAGEKHRPROC)eglGetProcAddress("eglDestroyImageKHR");
	if (!e->destroy_image) return TXS_RESOLVE_BASE + 1;
	e->export_query = (PFNEGLEXPORTDMABUFIMAGEQUERYMESAPROC)eglGetProcAddress("eglExportDMABUFImageQueryMESA");
	if (!e->export_query) return TXS_RESOLVE_BASE + 2;
	e->export_image = (PFNEGLEXPORTDMABUFIMAGEMESAPROC)eglGetProcAddress("eglExportDMABUFImageMESA");
	if (!e->export_image) return TXS_RESOLVE_BASE + 3;
	e->image_target = (PFNGLEGLIMAGETARGETTEXTURE2DOESPROC)eglGetProcAddress("glEGLImageTargetTexture2DOES");
	if (!e->image_target) return TXS_RESOLVE_BASE + 4;
	return TXS_OK;
}

static void txs_close(txs_egl *e) {
	if (e->dpy == EGL_NO_DISPLAY) return;
	eglMakeCurrent(e->dpy, EGL_NO_SURFACE, EGL_NO_SURFACE, EGL_NO_CONTEXT);
	if (e->ctx != EGL_NO_CONTEXT) eglDestroyContext(e->dpy, e->ctx);
	eglTerminate(e->dpy);
	e->dpy = EGL_NO_DISPLAY;
}

static GLenum txs_create_texture(int w, int h, const void *px, GLuint *out) {
	glGenTextures(1, out);
	glBindTexture(GL_TEXTURE_2D, *out);
	glTexParameteri(GL_TEXTURE_2D, GL_TEXTURE_MIN_FILTER, GL_NEAREST);
	glTexParameteri(GL_TEXTURE_2D, GL_TEXTURE_MAG_FILTER, GL_NEAREST);
	glPixelStorei(GL_UNPACK_ALIGNMENT, 1);
	glTexImage2D(GL_TEXTURE_2D, 0, GL_RGBA8, w, h, 0, GL_RGBA, GL_UNSIGNED_BYTE, px);
	return glGetError();
}

static GLenum txs_texture_size(GLuint tex, GLint *w, GLint *h) {
	glBindTexture(GL_TEXTURE_2D, tex);
	glGetTexLevelParameteriv(GL_TEXTURE_2D, 0, GL_TEXTURE_WIDTH, w);
	glGetTexLevelParameteriv(GL_TEXTURE_2D, 0, GL_TEXTURE_HEIGHT, h);
	return glGetError();
}

static GLenum txs_read_texture(GLuint tex, void *out) {
	glBindTexture(GL_TEXTURE_2D, tex);
	glPixelStorei(GL_PACK_ALIGNMENT, 1);
	glGetTexImage(GL_TEXTURE_2D, 0, GL_RGBA, GL_UNSIGNED_BYTE, out);
	return glGetError();
}

static void txs_delete_texture(GLuint tex) {
	glDeleteTextures(1, &tex);
}

static EGLImageKHR txs_image_from_texture(txs_egl *e, GLuint tex) {
	return e->create_image(e->dpy, e->ctx, EGL_GL_TEXTURE_2D_KHR, (EGLClientBuffer)(uintptr_t)tex, NULL);
}

static EGLBoolean txs_export_query(txs_egl *e, EGLImageKHR img, int *fourcc, int *planes, EGLuint64KHR *modifier) {
	return e->export_query(e->dpy, img, fourcc, planes, modifier);
}

static EGLBoolean txs_export(txs_egl *e, EGLImageKHR img, int *fd, EGLint *stride, EGLint *offset) {
	return e->export_image(e->dpy, img, fd, stride, offset);
}

static EGLImageKHR txs_import(txs_egl *e, int fd, int w, int h, int fourcc, uint64_t modifier, int with_modifier, int offset, int stride) {
	EGLint attribs[] = {
		EGL_WIDTH, w,
		EGL_HEIGHT, h,
		EGL_LINUX_DRM_FOURCC_EXT, fourcc,
		EGL_DMA_BUF_PLANE0_FD_EXT, fd,
		EGL_DMA_BUF_PLANE0_OFFSET_EXT, offset,
		EGL_DMA_BUF_PLANE0_PITCH_EXT, stride,
		EGL_NONE, EGL_NONE,
		EGL_NONE, EGL_NONE,
		EGL_NONE,
	};
	if (with_modifier) {
		attribs[12] = EGL_DMA_BUF_PLANE0_MODIFIER_LO_EXT;
		attribs[13] = (EGLint)(modifier & 0xffffffff);
		attribs[14] = EGL_DMA_BUF_PLANE0_MODIFIER_HI_EXT;
		attribs[15] = (EGLint)(modifier >> 32);
	}
	return e->create_image(e->dpy, EGL_NO_CONTEXT, EGL_LINUX_DMA_BUF_EXT, (EGLClientBuffer)NULL, attribs);
}

static GLenum txs_bind_image(txs_egl *e, EGLImageKHR img, GLuint *out) {
	glGenTextures(1, out);
	glBindTexture(GL_TEXTURE_2D, *out);
	glTexParameteri(GL_TEXTURE_2D, GL_TEXTURE_MIN_FILTER, GL_NEAREST);
	glTexParameteri(GL_TEXTURE_2D, GL_TEXTURE_MAG_FILTER, GL_NEAREST);
	e->image_target(GL_TEXTURE_2D, (GLeglImageOES)img);
	return glGetError();
}

static EGLBoolean txs_destroy_image(txs_egl *e, EGLImageKHR img) {
	return e->destroy_image(e->dpy, img);
}
*/
import "C"

import (
	"fmt"
	"log/slog"
	"runtime"
	"unsafe"

	"texshare/internal/gpu"
	"texshare/internal/logging"
)

// Available reports whether the EGL backend was compiled in.
const Available = true

// Backend is the registry name of this driver.
const Backend = "egl"

// modInvalid is DRM_FORMAT_MOD_INVALID: the modifier attributes are omitted.
const modInvalid uint64 = 0x00ffffffffffffff

var openSteps = map[C.int]string{
	C.TXS_GET_DISPLAY:    "open display",
	C.TXS_INITIALIZE:     "initialize",
	C.TXS_BIND_API:       "bind api",
	C.TXS_CHOOSE_CONFIG:  "choose config",
	C.TXS_CREATE_CONTEXT: "create context",
	C.TXS_MAKE_CURRENT:   "make current",
}

var extensions = []string{
	"eglCreateImageKHR",
	"eglDestroyImageKHR",
	"eglExportDMABUFImageQueryMESA",
	"eglExportDMABUFImageMESA",
	"glEGLImageTargetTexture2DOES",
}

func init() {
	gpu.Register(Backend, Open)
}

// Driver implements gpu.Driver on EGL and desktop OpenGL.
type Driver struct {
	e      *C.txs_egl
	calls  chan func()
	done   chan struct{}
	logger *slog.Logger
}

// Open creates the display, context and entry points on a dedicated thread.
func Open(opts gpu.Options) (gpu.Driver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Driver{
		e:      (*C.txs_egl)(C.calloc(1, C.size_t(unsafe.Sizeof(C.txs_egl{})))),
		calls:  make(chan func()),
		done:   make(chan struct{}),
		logger: logger.With(logging.String("backend", Backend)),
	}

	ready := make(chan error, 1)
	go d.loop(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	if opts.RenderNode != "" {
		d.logger.Debug("render node hint ignored by EGL_DEFAULT_DISPLAY", logging.String("render_node", opts.RenderNode))
	}
	return d, nil
}

func (d *Driver) loop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(d.done)
	defer C.free(unsafe.Pointer(d.e))

	if code := C.txs_open(d.e); code != C.TXS_OK {
		C.txs_close(d.e)
		ready <- openError(code)
		return
	}
	ready <- nil

	for call := range d.calls {
		call()
	}
	C.txs_close(d.e)
}

func openError(code C.int) error {
	if step, ok := openSteps[code]; ok {
		return gpu.StepError(Backend, step, eglError())
	}
	idx := int(code - C.TXS_RESOLVE_BASE)
	if idx >= 0 && idx < len(extensions) {
		return gpu.StepError(Backend, "resolve extension "+extensions[idx], nil)
	}
	return gpu.StepError(Backend, fmt.Sprintf("open (code %d)", int(code)), nil)
}

func eglError() error {
	return fmt.Errorf("egl error %#x", uint32(C.eglGetError()))
}

func glError(op string, code C.GLenum) error {
	if code == C.GL_NO_ERROR {
		return nil
	}
	return fmt.Errorf("%s: gl error %#x", op, uint32(code))
}

// do runs f on the context thread and waits for it.
func (d *Driver) do(f func()) {
	finished := make(chan struct{})
	d.calls <- func() {
		defer close(finished)
		f()
	}
	<-finished
}

func (d *Driver) CreateTexture(width, height int, pixels []byte) (gpu.Texture, error) {
	if err := checkUpload(width, height, len(pixels)); err != nil {
		return 0, err
	}
	var tex C.GLuint
	var err error
	d.do(func() {
		err = glError("upload texture", C.txs_create_texture(C.int(width), C.int(height), unsafe.Pointer(&pixels[0]), &tex))
	})
	return gpu.Texture(tex), err
}

func (d *Driver) ReadTexture(tex gpu.Texture) (int, int, []byte, error) {
	var (
		w, h   C.GLint
		pixels []byte
		err    error
	)
	d.do(func() {
		if err = glError("texture size", C.txs_texture_size(C.GLuint(tex), &w, &h)); err != nil {
			return
		}
		if w <= 0 || h <= 0 {
			err = fmt.Errorf("texture %d has no storage", tex)
			return
		}
		pixels = make([]byte, int(w)*int(h)*4)
		err = glError("read texture", C.txs_read_texture(C.GLuint(tex), unsafe.Pointer(&pixels[0])))
	})
	return int(w), int(h), pixels, err
}

func (d *Driver) DeleteTexture(tex gpu.Texture) error {
	d.do(func() {
		C.txs_delete_texture(C.GLuint(tex))
	})
	return nil
}

func (d *Driver) CreateImage(tex gpu.Texture) (gpu.Image, error) {
	var img C.EGLImageKHR
	var err error
	d.do(func() {
		img = C.txs_image_from_texture(d.e, C.GLuint(tex))
		if img == nil {
			err = fmt.Errorf("eglCreateImageKHR: %w", eglError())
		}
	})
	return gpu.Image(uintptr(img)), err
}

func (d *Driver) Flush() error {
	d.do(func() {
		C.glFlush()
	})
	return nil
}

func (d *Driver) ExportQuery(img gpu.Image) (gpu.ExportInfo, error) {
	var (
		fourcc, planes C.int
		modifier       C.EGLuint64KHR
		err            error
	)
	d.do(func() {
		if C.txs_export_query(d.e, C.EGLImageKHR(unsafe.Pointer(uintptr(img))), &fourcc, &planes, &modifier) == C.EGL_FALSE {
			err = fmt.Errorf("eglExportDMABUFImageQueryMESA: %w", eglError())
		}
	})
	return gpu.ExportInfo{FourCC: uint32(fourcc), Planes: int(planes), Modifier: uint64(modifier)}, err
}

func (d *Driver) Export(img gpu.Image) (gpu.ExportPlane, error) {
	var (
		fd             C.int = -1
		stride, offset C.EGLint
		err            error
	)
	d.do(func() {
		if C.txs_export(d.e, C.EGLImageKHR(unsafe.Pointer(uintptr(img))), &fd, &stride, &offset) == C.EGL_FALSE {
			err = fmt.Errorf("eglExportDMABUFImageMESA: %w", eglError())
		}
	})
	if err != nil {
		return gpu.ExportPlane{}, err
	}
	return gpu.ExportPlane{FD: int(fd), Stride: uint32(stride), Offset: uint32(offset)}, nil
}

func (d *Driver) ImportImage(spec gpu.ImportSpec) (gpu.Image, error) {
	withModifier := C.int(1)
	if spec.Modifier == modInvalid {
		withModifier = 0
	}
	var img C.EGLImageKHR
	var err error
	d.do(func() {
		img = C.txs_import(d.e, C.int(spec.FD), C.int(spec.Width), C.int(spec.Height),
			C.int(int32(spec.FourCC)), C.uint64_t(spec.Modifier), withModifier,
			C.int(spec.Offset), C.int(spec.Stride))
		if img == nil {
			err = fmt.Errorf("eglCreateImageKHR(%s): %w", spec, eglError())
		}
	})
	return gpu.Image(uintptr(img)), err
}

func (d *Driver) BindImage(img gpu.Image) (gpu.Texture, error) {
	var tex C.GLuint
	var err error
	d.do(func() {
		err = glError("glEGLImageTargetTexture2DOES", C.txs_bind_image(d.e, C.EGLImageKHR(unsafe.Pointer(uintptr(img))), &tex))
		if err != nil && tex != 0 {
			C.txs_delete_texture(tex)
		}
	})
	if err != nil {
		return 0, err
	}
	return gpu.Texture(tex), nil
}

func (d *Driver) DestroyImage(img gpu.Image) error {
	var err error
	d.do(func() {
		if C.txs_destroy_image(d.e, C.EGLImageKHR(unsafe.Pointer(uintptr(img)))) == C.EGL_FALSE {
			err = fmt.Errorf("eglDestroyImageKHR: %w", eglError())
		}
	})
	return err
}

// Close destroys the context and terminates the display.
func (d *Driver) Close() error {
	close(d.calls)
	<-d.done
	return nil
}
