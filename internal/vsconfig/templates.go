package vsconfig

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"sort"

	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/vserr"
)

// LoadTemplateCatalog reads every GPU, display-device, keyboard, and
// mouse template XML file under shippedRoot, then overrideRoot, keyed by
// type (model, for display devices). Files under overrideRoot replace
// shipped entries of the same key, so a site can supersede the shipped
// templates without editing them.
func LoadTemplateCatalog(shippedRoot, overrideRoot string) (TemplateCatalog, error) {
	cat := TemplateCatalog{
		GPUs:           map[string]*resource.GPU{},
		DisplayDevices: map[string]*resource.DisplayDevice{},
		Keyboards:      map[string]*resource.Keyboard{},
		Mice:           map[string]*resource.Mouse{},
	}

	if err := loadGPUTemplates(&cat, filepath.Join(shippedRoot, "gpus")); err != nil {
		return cat, err
	}
	if err := loadGPUTemplates(&cat, filepath.Join(overrideRoot, "gpus")); err != nil {
		return cat, err
	}

	if err := loadDisplayTemplates(&cat, filepath.Join(shippedRoot, "displays")); err != nil {
		return cat, err
	}
	if err := loadDisplayTemplates(&cat, filepath.Join(overrideRoot, "displays")); err != nil {
		return cat, err
	}

	if err := loadKeyboardTemplates(&cat, filepath.Join(shippedRoot, "keyboard")); err != nil {
		return cat, err
	}
	if err := loadKeyboardTemplates(&cat, filepath.Join(overrideRoot, "keyboard")); err != nil {
		return cat, err
	}

	if err := loadMouseTemplates(&cat, filepath.Join(shippedRoot, "mouse")); err != nil {
		return cat, err
	}
	if err := loadMouseTemplates(&cat, filepath.Join(overrideRoot, "mouse")); err != nil {
		return cat, err
	}

	return cat, nil
}

// xmlFiles returns the sorted list of *.xml files directly under dir,
// or nil if dir doesn't exist (an optional, not-yet-populated override
// directory is not a configuration error).
func xmlFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return nil, vserr.Newf(vserr.BadConfiguration, "glob %s: %v", dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func readElement(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return vserr.Newf(vserr.BadConfiguration, "read %s: %v", path, err)
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return vserr.Newf(vserr.BadConfiguration, "parse %s: %v", path, err)
	}
	return nil
}

func loadGPUTemplates(cat *TemplateCatalog, dir string) error {
	files, err := xmlFiles(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		var g resource.GPU
		if err := readElement(f, &g); err != nil {
			return err
		}
		cat.GPUs[g.Type] = &g
	}
	return nil
}

func loadDisplayTemplates(cat *TemplateCatalog, dir string) error {
	files, err := xmlFiles(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		var d resource.DisplayDevice
		if err := readElement(f, &d); err != nil {
			return err
		}
		cat.DisplayDevices[d.Model] = &d
	}
	return nil
}

func loadKeyboardTemplates(cat *TemplateCatalog, dir string) error {
	files, err := xmlFiles(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		var k resource.Keyboard
		if err := readElement(f, &k); err != nil {
			return err
		}
		cat.Keyboards[k.Type] = &k
	}
	return nil
}

func loadMouseTemplates(cat *TemplateCatalog, dir string) error {
	files, err := xmlFiles(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		var m resource.Mouse
		if err := readElement(f, &m); err != nil {
			return err
		}
		cat.Mice[m.Type] = &m
	}
	return nil
}
