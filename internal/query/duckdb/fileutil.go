package duckdb

import (
	"io"
	"os"
)

func writeFile(path string, reader io.Reader) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(file, reader)
	return err
}
