/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: signature.go
Description: Path signatures for the IMG! parser. A signature names the branch an input
took through Parse plus coarse dimension and payload classes; the engine treats every new
signature as new coverage.
*/

package execution

import (
	"fmt"

	"github.com/kleascm/imgfuzz/pkg/imgparse"
)

// ParserSignature returns the path signature of data
func ParserSignature(data []byte) string {
	out := imgparse.Parse(data)
	if !out.Accepted {
		return "rejected:" + out.Reason.String()
	}

	p := out.Payload
	var payload string
	switch {
	case p.DeclaredSize == 0:
		payload = "empty"
	case p.AvailableSize == 0:
		payload = "missing"
	case p.Truncated():
		payload = "short"
	case p.Trailing() > 0:
		payload = "trailing"
	default:
		payload = "exact"
	}

	return fmt.Sprintf("accepted:%s:%sx%s", payload, dimClass(out.Header.Width), dimClass(out.Header.Height))
}

// dimClass buckets one dimension byte
func dimClass(d uint8) string {
	switch {
	case d == 0, d == 1, d == 100, d == 255:
		return fmt.Sprint(d)
	case d < 100:
		return "lt100"
	default:
		return "gt100"
	}
}
