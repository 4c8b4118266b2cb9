// Package ffmpeg builds and drives the single ffmpeg invocation that
// produces every output of one packaging run: the poster frame, the
// progressive fallback, the HLS package and the preview frame sequence, all
// fanned out from one decode of the input.
package ffmpeg

// OutputTarget is one output declaration of an ffmpeg invocation: the
// options that apply to it followed by its destination path. ffmpeg is
// positionally sensitive (options bind to the next declared output), so
// targets keep their options to themselves until the final serialization.
type OutputTarget struct {
	args []string
	path string
}

// NewTarget creates an output target writing to path.
func NewTarget(path string) *OutputTarget {
	return &OutputTarget{path: path}
}

// Option appends a flag and its values to the target's option list.
func (t *OutputTarget) Option(flag string, values ...string) *OutputTarget {
	t.args = append(t.args, flag)
	t.args = append(t.args, values...)
	return t
}

// Path returns the target's destination path.
func (t *OutputTarget) Path() string { return t.path }

// Command accumulates global flags, a single input, and any number of
// output targets, and serializes them into ffmpeg's flat argument form.
type Command struct {
	globals []string
	input   string
	targets []*OutputTarget
}

// NewCommand creates a command for the given input file. Overwrite selects
// between ffmpeg's -y and -n global behavior. Progress reporting is routed
// to stdout in machine-readable key=value form.
func NewCommand(input string, overwrite bool) *Command {
	c := &Command{input: input}
	if overwrite {
		c.globals = append(c.globals, "-y")
	} else {
		c.globals = append(c.globals, "-n")
	}
	c.globals = append(c.globals,
		"-hide_banner",
		"-loglevel", "warning",
		"-nostats",
		"-progress", "pipe:1",
	)
	return c
}

// AddTarget appends an output target to the command.
func (c *Command) AddTarget(t *OutputTarget) {
	c.targets = append(c.targets, t)
}

// Targets returns the command's output targets in declaration order.
func (c *Command) Targets() []*OutputTarget { return c.targets }

// Args serializes the command: global flags, the -i input declaration, then
// each target's options followed by its path, in declaration order.
func (c *Command) Args() []string {
	args := make([]string, 0, len(c.globals)+2+len(c.targets)*16)
	args = append(args, c.globals...)
	args = append(args, "-i", c.input)
	for _, t := range c.targets {
		args = append(args, t.args...)
		args = append(args, t.path)
	}
	return args
}
