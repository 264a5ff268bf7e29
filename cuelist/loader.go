package cuelist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gruntwork-io/go-commons/errors"
	"gopkg.in/yaml.v3"
)

// planFile is the on-disk format of a light plan.
type planFile struct {
	ID         int64       `json:"lightplan_id" yaml:"lightplan_id"`
	SongTitle  string      `json:"song_title" yaml:"song_title"`
	SongArtist string      `json:"song_artist" yaml:"song_artist"`
	Author     string      `json:"author" yaml:"author"`
	StartingMs int64       `json:"starting_ms" yaml:"starting_ms"`
	Events     []planEvent `json:"events" yaml:"events"`
}

type planEvent struct {
	Offset      int64    `json:"offset" yaml:"offset"`
	Command     string   `json:"command" yaml:"command"`
	Comment     string   `json:"comment" yaml:"comment"`
	IgnoreDelay flexBool `json:"ignore_delay" yaml:"ignore_delay"`
}

// flexBool accepts real booleans as well as the "true"/"false" strings and numbers older plans contain.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		*b = flexBool(v)
	case string:
		*b = flexBool(strings.EqualFold(strings.TrimSpace(v), "true"))
	case float64:
		*b = v != 0
	default:
		*b = false
	}
	return nil
}

func (b *flexBool) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("ignore_delay: expected a scalar, got kind %d", node.Kind)
	}
	value := strings.TrimSpace(node.Value)
	if strings.EqualFold(value, "true") {
		*b = true
		return nil
	}
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		*b = n != 0
		return nil
	}
	*b = false
	return nil
}

// LoadFile reads a light plan from a .json, .yaml or .yml file.
func LoadFile(path string) (*CueList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStackTrace(err)
	}

	var pf planFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &pf)
	default:
		err = json.Unmarshal(data, &pf)
	}
	if err != nil {
		return nil, errors.WithStackTrace(fmt.Errorf("parsing light plan %s: %w", path, err))
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return pf.toCueList(name), nil
}

func (pf planFile) toCueList(fallbackName string) *CueList {
	name := fallbackName
	switch {
	case pf.SongArtist != "" && pf.SongTitle != "":
		name = pf.SongArtist + " - " + pf.SongTitle
	case pf.SongTitle != "":
		name = pf.SongTitle
	}

	cl := NewCueList(name)
	cl.ID = pf.ID
	cl.Title = pf.SongTitle
	cl.Artist = pf.SongArtist
	cl.Author = pf.Author
	cl.StartingOffsetMs = pf.StartingMs
	for _, evt := range pf.Events {
		cl.NewCue(evt.Offset, evt.Command, evt.Comment, bool(evt.IgnoreDelay))
	}
	return cl
}
