// Copyright 2018 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package translation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alien-bunny/backoffice/lib/config"
	"golang.org/x/text/language"
)

// LoadDirectory loads every dictionary file of dir.
//
// A dictionary is a flat map of source messages to translations, in a file
// named after its language, e.g. hu.yaml or pt-BR.toml. Files with other
// extensions are skipped. The default file types are toml, yaml and json.
func (t *Translator) LoadDirectory(dir string, fileTypes ...config.FileType) ([]language.Tag, error) {
	if len(fileTypes) == 0 {
		fileTypes = []config.FileType{&config.TOML{}, &config.YAML{}, &config.JSON{}}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var loaded []language.Tag
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.TrimPrefix(filepath.Ext(entry.Name()), ".")
		ft := fileTypeFor(fileTypes, ext)
		if ft == nil {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), "."+ext)
		lang, err := language.Parse(name)
		if err != nil {
			return loaded, fmt.Errorf("dictionary %s is not named after a language: %w", entry.Name(), err)
		}

		dict, err := readDictionary(filepath.Join(dir, entry.Name()), ft)
		if err != nil {
			return loaded, err
		}

		t.SetTranslations(lang, dict)
		loaded = append(loaded, lang)
	}

	return loaded, nil
}

func fileTypeFor(fileTypes []config.FileType, ext string) config.FileType {
	for _, ft := range fileTypes {
		for _, e := range ft.Extensions() {
			if strings.EqualFold(e, ext) {
				return ft
			}
		}
	}

	return nil
}

func readDictionary(path string, ft config.FileType) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dict := make(map[string]string)
	if err := ft.Unmarshal(f, &dict); err != nil {
		return nil, fmt.Errorf("invalid dictionary %s: %w", path, err)
	}

	return dict, nil
}
