// SPDX-License-Identifier: MIT

//go:build windows

package serial

var defaultConfig = Config{
	port: "COM1",
	baud: 115200,
}
