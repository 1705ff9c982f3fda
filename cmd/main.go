package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			crashLog := fmt.Sprintf("TRACKER CRASH at %s\nPanic: %v\n", time.Now().Format(time.RFC3339), r)

			for _, path := range []string{"./tracker_crash.log", filepath.Join(os.TempDir(), "tracker_crash.log")} {
				if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600); err == nil {
					f.WriteString(crashLog)
					f.Close()
				}
			}
			fmt.Fprintf(os.Stderr, "\n\n%s\n", crashLog)
			panic(r)
		}
	}()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
