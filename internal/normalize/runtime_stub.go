//go:build !govips || !cgo

package normalize

func Startup() error {
	return nil
}

func Shutdown() {}

func newRasterizer() (Rasterizer, error) {
	return stdRasterizer{}, nil
}
