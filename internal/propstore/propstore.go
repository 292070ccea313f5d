// Package propstore implements the Property Service (§4.10): atomic
// read/modify/write access to a container's properties.json file.
package propstore

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/moby/sys/atomicwriter"

	"keep/internal/cerr"
)

const propertiesFile = "properties.json"

// lockTable holds one mutex per container's private directory, matching
// the spec's "per-container exclusive lock" for any read-modify-write
// cycle without serializing unrelated containers against each other.
var lockTable = struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}{locks: make(map[string]*sync.Mutex)}

func lockFor(privateDir string) *sync.Mutex {
	lockTable.mu.Lock()
	defer lockTable.mu.Unlock()
	l, ok := lockTable.locks[privateDir]
	if !ok {
		l = &sync.Mutex{}
		lockTable.locks[privateDir] = l
	}
	return l
}

func propertiesPath(privateDir string) string {
	return privateDir + string(os.PathSeparator) + propertiesFile
}

// GetAll returns every property for the container whose private directory
// is privateDir. A missing file reads as an empty map.
func GetAll(privateDir string) (map[string]string, error) {
	l := lockFor(privateDir)
	l.Lock()
	defer l.Unlock()
	return readUnlocked(privateDir)
}

// GetProperty returns a single property, and whether it was present.
func GetProperty(privateDir, key string) (string, bool, error) {
	l := lockFor(privateDir)
	l.Lock()
	defer l.Unlock()

	props, err := readUnlocked(privateDir)
	if err != nil {
		return "", false, err
	}
	v, ok := props[key]
	return v, ok, nil
}

// SetProperties merges updates into the container's property map and
// persists the result atomically.
func SetProperties(privateDir string, updates map[string]string) error {
	l := lockFor(privateDir)
	l.Lock()
	defer l.Unlock()

	props, err := readUnlocked(privateDir)
	if err != nil {
		return err
	}
	for k, v := range updates {
		props[k] = v
	}
	return writeUnlocked(privateDir, props)
}

// RemoveProperty deletes key, if present, and persists the result.
func RemoveProperty(privateDir, key string) error {
	l := lockFor(privateDir)
	l.Lock()
	defer l.Unlock()

	props, err := readUnlocked(privateDir)
	if err != nil {
		return err
	}
	delete(props, key)
	return writeUnlocked(privateDir, props)
}

func readUnlocked(privateDir string) (map[string]string, error) {
	data, err := os.ReadFile(propertiesPath(privateDir))
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "read properties.json")
	}

	props := make(map[string]string)
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, cerr.Wrap(err, cerr.KindHostUnavailable, "unmarshal properties.json")
	}
	return props, nil
}

func writeUnlocked(privateDir string, props map[string]string) error {
	data, err := json.MarshalIndent(props, "", "  ")
	if err != nil {
		return cerr.Wrap(err, cerr.KindHostUnavailable, "marshal properties.json")
	}
	if err := atomicwriter.WriteFile(propertiesPath(privateDir), data, 0o600); err != nil {
		return cerr.Wrap(err, cerr.KindHostUnavailable, "write properties.json")
	}
	return nil
}
