package core

import "github.com/mikey-austin/mtogo/pkg/spark"

// DevicesResult holds a list of presence records.
type DevicesResult struct {
	Devices []spark.Presence
}

// ResponseResult is a successful reply from a device.
type ResponseResult struct {
	Device  spark.Presence
	Command string
	Payload spark.Payload
}

// RawResult holds arbitrary JSON data for output.
type RawResult struct {
	Data any
}
