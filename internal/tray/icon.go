package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
)

const iconSize = 16

// iconPNG draws the pad: a 3x4 grid of key squares.
func iconPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	key := color.RGBA{R: 0x46, G: 0x4E, B: 0xB8, A: 0xFF}
	for row := 0; row < 4; row++ {
		for col := 0; col < 3; col++ {
			x0, y0 := 2+col*4, row*4
			for y := y0; y < y0+3; y++ {
				for x := x0; x < x0+3; x++ {
					img.Set(x, y, key)
				}
			}
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// icoFromPNG wraps a PNG in a single-image ICO container.
func icoFromPNG(data []byte) []byte {
	var buf bytes.Buffer
	// ICONDIR: reserved, type 1 (icon), one image
	binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY: 16x16, no palette, 1 plane, 32 bpp, size, offset
	buf.Write([]byte{iconSize, iconSize, 0, 0})
	binary.Write(&buf, binary.LittleEndian, [2]uint16{1, 32})
	binary.Write(&buf, binary.LittleEndian, [2]uint32{uint32(len(data)), 22})
	buf.Write(data)
	return buf.Bytes()
}

// icon returns the tray icon in the format the platform expects
func icon() []byte {
	data := iconPNG()
	if runtime.GOOS == "windows" {
		return icoFromPNG(data)
	}
	return data
}
