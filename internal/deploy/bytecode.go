package deploy

import (
	"github.com/Cyber-Mitch/nilshard/api"
)

// The delegation stub is the minimal-proxy runtime: every clone forwards its
// calls to the template address baked in between the two halves. The stub has
// no cross-shard delegation support, which is why the registry pins clone
// families to a single shard.
var (
	stubPrefix = []byte{
		0x3d, 0x60, 0x2d, 0x80, 0x60, 0x0a, 0x3d, 0x39, 0x81, 0xf3,
		0x36, 0x3d, 0x3d, 0x37, 0x3d, 0x3d, 0x3d, 0x36, 0x3d, 0x73,
	}
	stubSuffix = []byte{
		0x5a, 0xf4, 0x3d, 0x82, 0x80, 0x3e, 0x90, 0x3d, 0x91, 0x60,
		0x2b, 0x57, 0xfd, 0x5b, 0xf3,
	}
)

// CloneBytecode computes deployment bytecode for a clone of template by
// splicing the template address into the fixed delegation stub.
func CloneBytecode(template api.Address) ([]byte, error) {
	addr, err := template.Bytes()
	if err != nil {
		return nil, api.Failure{Code: api.CodeInvalidTarget, Detail: err.Error()}
	}
	code := make([]byte, 0, len(stubPrefix)+len(addr)+len(stubSuffix))
	code = append(code, stubPrefix...)
	code = append(code, addr[:]...)
	code = append(code, stubSuffix...)
	return code, nil
}
