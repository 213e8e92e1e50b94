package dummy

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/stemsplit/stemsplit-be/src/pipeline/separation"
	"github.com/stemsplit/stemsplit-be/src/pipeline/stem"
	"github.com/stemsplit/stemsplit-be/src/pipeline/wavfile"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/executor"
)

var _ executor.Executor = &SeparatorExecutor{}

func NewDummySeparatorExecutor(output separation.Prediction) *SeparatorExecutor {
	return &SeparatorExecutor{
		Output: output,
	}
}

// SeparatorExecutor pretends to be the separator binary. A separate
// invocation writes Output's stems as WAV files into the directory
// given by the -o flag, the way the real tool lays its output down.
type SeparatorExecutor struct {
	FailHelp     bool
	FailSeparate bool
	Output       separation.Prediction

	// MaxInFlight records the highest number of concurrently running
	// separate invocations. A serializing caller keeps it at 1.
	MaxInFlight int32

	mutex    sync.Mutex
	commands [][]string
	inFlight int32
}

func (e *SeparatorExecutor) Command(name string, arg ...string) executor.Command {
	fullCommand := append([]string{name}, arg...)

	e.mutex.Lock()
	e.commands = append(e.commands, fullCommand)
	e.mutex.Unlock()

	return &separatorCommand{
		parent: e,
		args:   arg,
	}
}

func (e *SeparatorExecutor) Commands() [][]string {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	copied := make([][]string, len(e.commands))
	copy(copied, e.commands)
	return copied
}

type separatorCommand struct {
	parent *SeparatorExecutor
	args   []string
}

func (c *separatorCommand) SetDir(dir string) {}

func (c *separatorCommand) CombinedOutput() ([]byte, error) {
	if isHelpInvocation(c.args) {
		if c.parent.FailHelp {
			return []byte("command not found"), cerr.Error("Dummy separator refused the help invocation")
		}
		return []byte("usage: separate"), nil
	}

	current := atomic.AddInt32(&c.parent.inFlight, 1)
	defer atomic.AddInt32(&c.parent.inFlight, -1)

	for {
		observed := atomic.LoadInt32(&c.parent.MaxInFlight)
		if current <= observed || atomic.CompareAndSwapInt32(&c.parent.MaxInFlight, observed, current) {
			break
		}
	}

	if c.parent.FailSeparate {
		return []byte("boom"), cerr.Error("Dummy separator failed")
	}

	outputDir, ok := flagValue(c.args, "-o")
	if !ok {
		return nil, cerr.Error("Dummy separator was invoked without an output dir")
	}

	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return nil, cerr.Wrap(err).Error("Dummy separator could not create the output dir")
	}

	for stemName, wave := range c.parent.Output {
		outputPath := filepath.Join(outputDir, fmt.Sprintf("%s.wav", stem.Name(stemName)))
		if err := wavfile.Write(outputPath, wave); err != nil {
			return nil, cerr.Wrap(err).Error("Dummy separator could not write a stem file")
		}
	}

	return []byte("done"), nil
}

func isHelpInvocation(args []string) bool {
	for _, arg := range args {
		if arg == "--help" {
			return true
		}
	}
	return false
}

func flagValue(args []string, flag string) (string, bool) {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}
