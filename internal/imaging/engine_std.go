//go:build !vips || !cgo

package imaging

func newConverter() converter { return stdConverter{} }
