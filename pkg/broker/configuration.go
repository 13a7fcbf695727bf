package broker

import (
	"github.com/jabolina/go-broker/pkg/broker/definition"
	"github.com/jabolina/go-broker/pkg/broker/helper"
	"github.com/jabolina/go-broker/pkg/broker/types"
)

// DefaultConfiguration creates a configuration with a generated
// identity, the latest protocol version and the default logger.
func DefaultConfiguration(name string) *types.Configuration {
	return &types.Configuration{
		Name:    name,
		ID:      helper.NewEndpointID(),
		Version: types.LatestProtocolVersion,
		Logger:  definition.NewDefaultLogger(name),
	}
}
