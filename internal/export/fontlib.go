/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// FontLibrary stores parsed OpenType fonts by family and weight for raster
// previews. Family lookup is case-insensitive. Only regular and bold are kept.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[fontKey]*opentype.Font
}

type fontKey struct {
	family string
	bold   bool
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[fontKey]*opentype.Font)} }

// LoadTTF loads a font file into the library under the given family and weight.
func (fl *FontLibrary) LoadTTF(family string, bold bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return fl.Add(family, bold, data)
}

// Add parses TTF/OTF bytes and registers them.
func (fl *FontLibrary) Add(family string, bold bool, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", family, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[fontKey]*opentype.Font)
	}
	fl.fonts[fontKey{family: strings.ToLower(strings.TrimSpace(family)), bold: bold}] = f
	return nil
}

// Families lists the registered families, sorted.
func (fl *FontLibrary) Families() []string {
	if fl == nil {
		return nil
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	out := lo.Uniq(lo.Map(lo.Keys(fl.fonts), func(k fontKey, _ int) string { return k.family }))
	sort.Strings(out)
	return out
}

func (fl *FontLibrary) find(families []string, bold bool) *opentype.Font {
	if fl == nil {
		return nil
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	for _, fam := range families {
		fam = strings.ToLower(strings.TrimSpace(fam))
		if f, ok := fl.fonts[fontKey{family: fam, bold: bold}]; ok {
			return f
		}
		if f, ok := fl.fonts[fontKey{family: fam, bold: !bold}]; ok {
			return f
		}
	}
	return nil
}

// Face returns a face for the first family of the stack that is loaded, at
// sizePx pixels. It falls back to the fixed 7x13 basic font. The second result
// reports whether a real font was used. Faces are not safe for concurrent use.
func (fl *FontLibrary) Face(families []string, bold bool, sizePx float64) (font.Face, bool) {
	if sizePx <= 0 {
		sizePx = 16
	}
	if f := fl.find(families, bold); f != nil {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: sizePx, DPI: 72, Hinting: font.HintingFull})
		if err == nil {
			return face, true
		}
	}
	return basicfont.Face7x13, false
}
