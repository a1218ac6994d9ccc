package class

import "errors"

// Context identifies the class a coach is taking attendance for: the package,
// the date, and the resolved class record. It is replaced wholesale whenever
// the coach changes selection.
type Context struct {
	ClassID     string
	ClassTypeID string
	PackageID   string
	Date        string // YYYY-MM-DD
}

// Validate checks if the Context has valid data.
// PRE: Context struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (c *Context) Validate() error {
	if c.ClassID == "" {
		return errors.New("class must be selected before taking attendance")
	}
	return nil
}

// Same reports whether two contexts refer to the same class. Responses issued
// under a different context are stale and must be discarded.
func (c Context) Same(other Context) bool {
	return c.ClassID == other.ClassID
}
