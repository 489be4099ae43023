package gpkg

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

var ErrUnsupportedGeometry = errors.New("gpkg: unsupported geometry blob")

// 文档注释：GeoPackage 几何二进制（GP 头 + WKB）
// 背景：GeoPackage 在 WKB 前附加 8 字节头与可选包围盒；头部整数字节序由 flags 第 0 位决定。
// 约束：包围盒指示 0/1/2/3/4 对应 0/32/48/48/64 字节；空几何标记置位时返回 nil 几何；仅支持二维 WKB。
func DecodeGeometry(b []byte) (orb.Geometry, int32, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return nil, 0, ErrUnsupportedGeometry
	}
	flags := b[3]
	var order binary.ByteOrder = binary.BigEndian
	if flags&0x01 != 0 {
		order = binary.LittleEndian
	}
	srs := int32(order.Uint32(b[4:8]))
	var envSize int
	switch (flags >> 1) & 0x07 {
	case 0:
	case 1:
		envSize = 32
	case 2, 3:
		envSize = 48
	case 4:
		envSize = 64
	default:
		return nil, srs, fmt.Errorf("%w: envelope indicator %d", ErrUnsupportedGeometry, (flags>>1)&0x07)
	}
	if flags&0x10 != 0 {
		return nil, srs, nil
	}
	off := 8 + envSize
	if len(b) <= off {
		return nil, srs, fmt.Errorf("%w: truncated blob", ErrUnsupportedGeometry)
	}
	g, err := wkb.Unmarshal(b[off:])
	if err != nil {
		return nil, srs, fmt.Errorf("%w: %v", ErrUnsupportedGeometry, err)
	}
	return g, srs, nil
}

// EncodeGeometry：写出小端 GP 头 + 二维包围盒 + WKB
func EncodeGeometry(g orb.Geometry, srs int32) ([]byte, error) {
	body, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+32, 8+32+len(body))
	out[0], out[1], out[2] = 'G', 'P', 0
	out[3] = 0x01 | 0x01<<1
	binary.LittleEndian.PutUint32(out[4:8], uint32(srs))
	bd := g.Bound()
	putFloat(out[8:], bd.Min[0])
	putFloat(out[16:], bd.Max[0])
	putFloat(out[24:], bd.Min[1])
	putFloat(out[32:], bd.Max[1])
	return append(out, body...), nil
}
