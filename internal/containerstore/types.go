package containerstore

// Container describes one ps_<uuid> directory and its layout (spec.md §3).
type Container struct {
	ID  string // full uuid
	Dir string // absolute path to ps_<uuid>
}

// MountDir is the overlay target — the container's root filesystem.
func (c *Container) MountDir() string { return c.Dir + "/fs/mnt" }

// UpperDir is the overlay's writable layer.
func (c *Container) UpperDir() string { return c.Dir + "/fs/upperdir" }

// WorkDir is overlayfs's required scratch directory.
func (c *Container) WorkDir() string { return c.Dir + "/fs/workdir" }

// FSDir is the parent of mnt/upperdir/workdir.
func (c *Container) FSDir() string { return c.Dir + "/fs" }

func (c *Container) srcFile() string   { return c.Dir + "/src.txt" }
func (c *Container) cmdFile() string   { return c.Dir + "/cmd.txt" }
func (c *Container) pidFile() string   { return c.Dir + "/pid.txt" }
func (c *Container) netnsFile() string { return c.Dir + "/netns.txt" }
