// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package logging provides the pipeline's singleton stdout(+file) logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu     sync.Mutex
	writer io.Writer = os.Stdout
)

// AlsoToFile mirrors all subsequent log output to the given file, in
// addition to stdout. Passing an empty path is a no-op.
func AlsoToFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	mu.Lock()
	writer = io.MultiWriter(os.Stdout, f)
	mu.Unlock()
	return nil
}

func LogPrint(a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprint(writer, a...)
}

func LogPrintln(a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(writer, a...)
}

func LogPrintf(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(writer, format, a...)
}
