package main

import (
	"fmt"
	"io"
	"os"
)

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

// openOutput opens the sink that receives the decoded PCM.
func openOutput(driver string, deviceName string) (io.WriteCloser, error) {
	switch driver {
	case "stdout":
		return nopWriteCloser{os.Stdout}, nil

	case "null":
		return nopWriteCloser{io.Discard}, nil

	case "file":
		if deviceName == "" {
			return nil, fmt.Errorf("the file driver requires a device name")
		}
		return os.Create(deviceName)
	}

	return nil, fmt.Errorf("unknown driver '%s'", driver)
}
