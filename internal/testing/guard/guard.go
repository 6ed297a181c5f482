package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SEIFENWERK_TEST_MODE") == "" {
			_ = os.Setenv("SEIFENWERK_TEST_MODE", "1")
		}
	})
}
