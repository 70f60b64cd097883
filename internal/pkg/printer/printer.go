/*
 * Copyright 2018 The Sugarkube Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package printer

import (
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/colorstring"
)

var writer io.Writer = os.Stdout

// colour markup (e.g. '[green]') is stripped instead of rendered when false
var colorize = true

func SetOutput(out io.Writer) {
	writer = out
}

func SetColor(enabled bool) {
	colorize = enabled
}

func Fprint(text string) (int, error) {
	return fmt.Fprint(writer, colorizer().Color(text))
}

func Fprintf(format string, args ...interface{}) (int, error) {
	return fmt.Fprintf(writer, colorizer().Color(format), args...)
}

func Fprintln(text string) (int, error) {
	return fmt.Fprintln(writer, colorizer().Color(text))
}

func colorizer() *colorstring.Colorize {
	return &colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: !colorize,
		Reset:   true,
	}
}
