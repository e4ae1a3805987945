package inject

import (
	"context"

	"go.viam.com/flightcontrol/attitude"
	"go.viam.com/flightcontrol/flight"
)

// IMU is an injected IMU.
type IMU struct {
	flight.IMU
	ReadIMUFunc func(ctx context.Context) (attitude.Sample, error)
}

// ReadIMU calls the injected ReadIMU or the real version.
func (i *IMU) ReadIMU(ctx context.Context) (attitude.Sample, error) {
	if i.ReadIMUFunc == nil {
		return i.IMU.ReadIMU(ctx)
	}
	return i.ReadIMUFunc(ctx)
}
