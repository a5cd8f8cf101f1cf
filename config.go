package chunkmap

import (
	"fmt"
	"github.com/gostonefire/chunkmap/storeerr"
	"gopkg.in/yaml.v3"
	"os"
)

// Conf - Engine configuration, loadable from yaml
//   - MinChunkPower is the power of the smallest chunk payload
//   - ZeroFill set to true wipes chunk payloads when chunks are recycled
//   - LockStripes is the number of lock tokens maps are serialized on
//   - AddressLockPool is the number of released chunk address locks kept for reuse
//   - SkipListSeed seeds the height generator of sorted maps
//   - InitialMapSize is the max count of new maps unless given at creation
type Conf struct {
	MinChunkPower   int64 `yaml:"minChunkPower"`
	ZeroFill        bool  `yaml:"zeroFill"`
	LockStripes     int   `yaml:"lockStripes"`
	AddressLockPool int   `yaml:"addressLockPool"`
	SkipListSeed    int64 `yaml:"skipListSeed"`
	InitialMapSize  int64 `yaml:"initialMapSize"`
}

// DefaultConf - Returns the configuration used for fields a yaml file leaves out
func DefaultConf() Conf {
	return Conf{
		MinChunkPower:   8,
		ZeroFill:        true,
		LockStripes:     64,
		AddressLockPool: 16,
		SkipListSeed:    1,
		InitialMapSize:  64,
	}
}

// LoadConf - Reads a yaml configuration file on top of DefaultConf and validates the result
//   - fileName is the path to the yaml file
func LoadConf(fileName string) (cfg Conf, err error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		err = fmt.Errorf("error while reading configuration file: %w", err)
		return
	}

	cfg, err = ParseConf(data)

	return
}

// ParseConf - Decodes yaml on top of DefaultConf and validates the result
func ParseConf(data []byte) (cfg Conf, err error) {
	cfg = DefaultConf()

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		err = fmt.Errorf("error while decoding configuration: %w", err)
		return
	}

	err = cfg.Validate()

	return
}

// Validate - Checks that all fields are within range
func (C Conf) Validate() (err error) {
	switch {
	case C.MinChunkPower < 1 || C.MinChunkPower > 62:
		err = storeerr.NewInvalidArgument("minChunkPower %d outside [1, 62]", C.MinChunkPower)
	case C.LockStripes < 1:
		err = storeerr.NewInvalidArgument("lockStripes %d must be positive", C.LockStripes)
	case C.AddressLockPool < 0:
		err = storeerr.NewInvalidArgument("addressLockPool %d can not be negative", C.AddressLockPool)
	case C.InitialMapSize < 1:
		err = storeerr.NewInvalidArgument("initialMapSize %d must be positive", C.InitialMapSize)
	}

	return
}
