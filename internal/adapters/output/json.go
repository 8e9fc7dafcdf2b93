package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mikey-austin/mtogo/internal/core"
	"github.com/mikey-austin/mtogo/pkg/spark"
)

// JSONPrinter prints JSON to Out, or stdout.
type JSONPrinter struct {
	Out io.Writer
}

// Print renders JSON output. Responses are printed in their wire form.
func (p JSONPrinter) Print(v any) error {
	switch data := v.(type) {
	case core.ResponseResult:
		v = spark.Ok(data.Payload)
	case core.RawResult:
		v = data.Data
	case core.DevicesResult:
		v = data.Devices
	}
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(writerOrStdout(p.Out), string(payload))
	return err
}
