package colobj

import (
	"sync"

	"github.com/colobj/colobj/internal/encoding"
)

// encoderPool holds a pool of [encoding.Encoder] instances. Callers must
// always reset pooled encoders before use.
var encoderPool = sync.Pool{
	New: func() any {
		return encoding.NewEncoder(nil)
	},
}
