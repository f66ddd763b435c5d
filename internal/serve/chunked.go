/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package serve

import (
	"bufio"
	"strconv"
	"strings"
)

// readChunkedBody implements the §4.3 chunked request body reader:
// hex size line, exactly that many bytes, a discarded trailing CRLF,
// repeat until a zero-size chunk, enforcing maxBody along the way.
func readChunkedBody(br *bufio.Reader, maxBody int64) ([]byte, error) {
	var body []byte
	for {
		sizeLine, err := readLine(br, false)
		if err != nil {
			return nil, err
		}
		sizeLine = strings.TrimSpace(sizeLine)
		if i := strings.IndexByte(sizeLine, ';'); i >= 0 {
			sizeLine = sizeLine[:i]
		}
		size, err := strconv.ParseInt(sizeLine, 16, 64)
		if err != nil || size < 0 {
			return nil, errBadRequest
		}
		if size == 0 {
			// Consume the trailing CRLF after the zero chunk.
			if _, err := readLine(br, false); err != nil {
				return nil, err
			}
			return body, nil
		}
		if int64(len(body))+size > maxBody {
			return nil, errBodyTooLarge
		}
		chunk := make([]byte, size)
		if _, err := readFull(br, chunk); err != nil {
			return nil, errBadRequest
		}
		if _, err := readLine(br, false); err != nil { // trailing CRLF
			return nil, err
		}
		body = append(body, chunk...)
	}
}
