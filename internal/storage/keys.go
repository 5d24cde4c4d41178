package storage

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// NewProgramFolder holds the per-draft folders of programs that have not been
// saved yet. It is never a program's own folder.
const NewProgramFolder = "new"

const programsRoot = "programs/"

func objectName(filename string, now time.Time) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	return fmt.Sprintf("%d_%s", now.UnixMilli(), name)
}

// ProgramPrefix is the folder holding every object of a saved program.
func ProgramPrefix(programID string) string {
	return programsRoot + programID + "/"
}

// DraftPrefix is the folder for uploads made by one unsaved draft.
func DraftPrefix(draftID string) string {
	return programsRoot + NewProgramFolder + "/" + draftID + "/"
}

// IsDraftKey reports whether key was uploaded before its program was saved.
func IsDraftKey(key string) bool {
	return strings.HasPrefix(key, programsRoot+NewProgramFolder+"/")
}

// VideoKey and the resource keys below are built under folder, as returned
// by ProgramPrefix or DraftPrefix.
func VideoKey(folder, filename string, now time.Time) string {
	return folder + "videos/" + objectName(filename, now)
}

func ProgramResourceKey(folder, filename string, now time.Time) string {
	return folder + "resources/" + objectName(filename, now)
}

func PageResourceKey(folder, pageID, filename string, now time.Time) string {
	return folder + "pages/" + pageID + "/resources/" + objectName(filename, now)
}

// KeyFromURL recovers the object key from a download URL built by PublicURL.
// URLs that do not point into the programs tree report false.
func KeyFromURL(rawURL string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	i := strings.Index(u.Path, "/"+programsRoot)
	if i < 0 {
		return "", false
	}
	key := u.Path[i+1:]
	if len(key) <= len(programsRoot) {
		return "", false
	}
	return key, true
}
