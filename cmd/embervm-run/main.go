// Command embervm-run is a line-delimited-JSON test/debug harness for the
// VM core. It is not a language CLI front-end; it exists to drive the
// library from a shell pipeline without writing Go.
//
// Each input line is a JSON-encoded ByteCodeBuffer. For each line,
// embervm-run evaluates it and writes one JSON result line to stdout;
// diagnostics go to stderr.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/emberlang/embervm/internal/embervm/bytecode"
	"github.com/emberlang/embervm/internal/embervm/trace"
	"github.com/emberlang/embervm/internal/embervm/value"
	"github.com/emberlang/embervm/pkg/embervm"
)

// debugSymInput mirrors bytecode.DebugSym for JSON decoding.
type debugSymInput struct {
	PC             int `json:"pc"`
	NodeIndex      int `json:"node_index"`
	FrameNodeIndex int `json:"frame_node_index"`
}

// programInput mirrors bytecode.ByteCodeBuffer for JSON decoding: Consts is
// carried as raw u64 bit patterns since value.Value has no JSON mapping of
// its own (the NaN-boxing scheme is an implementation detail, not a wire
// contract the host is expected to speak).
type programInput struct {
	Ops           []byte          `json:"ops"`
	Consts        []uint64        `json:"consts"`
	StrBuf        []byte          `json:"str_buf"`
	DebugTable    []debugSymInput `json:"debug_table"`
	MainLocalSize uint32          `json:"main_local_size"`
}

func (p *programInput) toBuffer() *bytecode.ByteCodeBuffer {
	consts := make([]value.Value, len(p.Consts))
	for i, c := range p.Consts {
		consts[i] = value.Value(c)
	}
	debug := make([]bytecode.DebugSym, len(p.DebugTable))
	for i, d := range p.DebugTable {
		debug[i] = bytecode.DebugSym{PC: d.PC, NodeIndex: d.NodeIndex, FrameNodeIndex: d.FrameNodeIndex}
	}
	return &bytecode.ByteCodeBuffer{
		Ops:           p.Ops,
		Consts:        consts,
		StrBuf:        p.StrBuf,
		DebugTable:    debug,
		MainLocalSize: p.MainLocalSize,
	}
}

type resultOutput struct {
	Result   *float64 `json:"result,omitempty"`
	IsNumber bool     `json:"is_number"`
	Panic    string   `json:"panic,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func main() {
	vm, err := embervm.New(embervm.DefaultConfig())
	if err != nil {
		fatal("constructing VM: %v", err)
	}
	defer vm.Deinit()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	out := json.NewEncoder(os.Stdout)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var in programInput
		if err := json.Unmarshal(line, &in); err != nil {
			logStderr("line %d: malformed program input: %v", lineNo, err)
			out.Encode(resultOutput{Error: err.Error()})
			continue
		}

		buf := in.toBuffer()
		fp := trace.Fingerprint(buf)
		logStderr("line %d: program %x (%d ops, %d consts)", lineNo, fp[:8], len(buf.Ops), len(buf.Consts))

		result, evalErr := vm.Eval(buf)
		if evalErr != nil {
			var vmErr *embervm.Error
			if errors.As(evalErr, &vmErr) && vmErr.Code == embervm.ErrPanic {
				logStderr("line %d: panic: %s", lineNo, vm.GetPanicMsg())
				out.Encode(resultOutput{Panic: vm.GetPanicMsg()})
				continue
			}
			logStderr("line %d: eval error: %v", lineNo, evalErr)
			out.Encode(resultOutput{Error: evalErr.Error()})
			continue
		}

		if result.IsNumber() {
			f := result.AsFloat()
			out.Encode(resultOutput{Result: &f, IsNumber: true})
		} else {
			out.Encode(resultOutput{IsNumber: false})
		}
		vm.Release(result)
	}
	if err := scanner.Err(); err != nil {
		fatal("reading stdin: %v", err)
	}
}

func logStderr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func fatal(format string, args ...any) {
	logStderr(format, args...)
	os.Exit(1)
}
