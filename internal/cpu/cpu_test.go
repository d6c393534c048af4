package cpu

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/thelolagemann/tickboy/internal/clock"
	"github.com/thelolagemann/tickboy/pkg/log"
)

// testBus is a flat 64KiB address space.
type testBus [0x10000]uint8

func (b *testBus) Read(address uint16) uint8 { return b[address] }

func (b *testBus) Write(address uint16, value uint8) { b[address] = value }

func (b *testBus) Read16(address uint16) uint16 {
	return uint16(b[address]) | uint16(b[address+1])<<8
}

func (b *testBus) Write16(address uint16, value uint16) {
	b[address] = uint8(value)
	b[address+1] = uint8(value >> 8)
}

func newTestCPU(opts ...Opt) *CPU {
	return NewCPU(&testBus{}, opts...)
}

// newTestProgram returns a CPU with program loaded at its entry point.
func newTestProgram(program ...uint8) (*CPU, *testBus) {
	b := &testBus{}
	copy(b[0x0100:], program)
	return NewCPU(b), b
}

// runUntilHalted ticks c until it halts, failing after limit ticks.
func runUntilHalted(t *testing.T, c *CPU, limit int) int {
	t.Helper()
	for ticks := 0; ticks < limit; ticks++ {
		if c.Halted() {
			return ticks
		}
		if err := c.Tick(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	t.Fatalf("cpu did not halt within %d ticks", limit)
	return 0
}

func TestCPU_New(t *testing.T) {
	c := newTestCPU()
	if c.PC != 0x0100 {
		t.Errorf("expected PC 0x0100, got 0x%04X", c.PC)
	}
	if c.SP != 0xFFFE {
		t.Errorf("expected SP 0xFFFE, got 0x%04X", c.SP)
	}
	if c.Halted() || c.Stopped() || c.IME() || c.Remaining() != 0 {
		t.Errorf("expected an idle running cpu")
	}
}

func TestCPU_Program(t *testing.T) {
	t.Run("add", func(t *testing.T) {
		// LD A, 5; LD B, 3; ADD A, B; HALT
		c, _ := newTestProgram(0x3E, 0x05, 0x06, 0x03, 0x80, 0x76)
		ticks := runUntilHalted(t, c, 100)

		if c.A != 8 {
			t.Errorf("expected A=8, got %d", c.A)
		}
		if c.F != 0 {
			t.Errorf("expected no flags, got %08b", c.F)
		}
		if c.PC != 0x0106 {
			t.Errorf("expected PC 0x0106, got 0x%04X", c.PC)
		}
		// 2 + 2 + 1 cycles, HALT executes on the 6th tick
		if ticks != 6 {
			t.Errorf("expected halt after 6 ticks, got %d", ticks)
		}
	})
	t.Run("increment overflow", func(t *testing.T) {
		// LD A, 0xFF; INC A; HALT
		c, _ := newTestProgram(0x3E, 0xFF, 0x3C, 0x76)
		runUntilHalted(t, c, 100)

		if c.A != 0 {
			t.Errorf("expected A=0, got %d", c.A)
		}
		if !c.isFlagsSet(FlagZero, FlagHalfCarry) || !c.isFlagsNotSet(FlagSubtract, FlagCarry) {
			t.Errorf("expected Z and H only, got %08b", c.F)
		}
	})
	t.Run("loop", func(t *testing.T) {
		// LD B, 10; XOR A; loop: ADD A, 3; DEC B; JR NZ, loop; HALT
		c, _ := newTestProgram(0x06, 0x0A, 0xAF, 0xC6, 0x03, 0x05, 0x20, 0xFB, 0x76)
		runUntilHalted(t, c, 1000)

		if c.A != 30 || c.B != 0 {
			t.Errorf("expected A=30 B=0, got A=%d B=%d", c.A, c.B)
		}
	})
	t.Run("call and return", func(t *testing.T) {
		// CALL 0x0200; HALT; ... 0x0200: LD A, 0x42; RET
		c, b := newTestProgram(0xCD, 0x00, 0x02, 0x76)
		copy(b[0x0200:], []uint8{0x3E, 0x42, 0xC9})
		runUntilHalted(t, c, 100)

		if c.A != 0x42 {
			t.Errorf("expected A=0x42, got 0x%02X", c.A)
		}
		if c.SP != 0xFFFE {
			t.Errorf("expected SP to be restored, got 0x%04X", c.SP)
		}
		if b[0xFFFC] != 0x03 || b[0xFFFD] != 0x01 {
			t.Errorf("expected return address 0x0103 on the stack, got %02X%02X", b[0xFFFD], b[0xFFFC])
		}
	})
	t.Run("copy loop", func(t *testing.T) {
		// LD HL, 0xC000; LD A, 1; LD (HL+), A; INC A; CP 5; JR NZ, -6; HALT
		c, b := newTestProgram(0x21, 0x00, 0xC0, 0x3E, 0x01, 0x22, 0x3C, 0xFE, 0x05, 0x20, 0xFA, 0x76)
		runUntilHalted(t, c, 1000)

		if !bytes.Equal(b[0xC000:0xC005], []uint8{1, 2, 3, 4, 0}) {
			t.Errorf("unexpected memory % X", b[0xC000:0xC005])
		}
		if c.HL.Uint16() != 0xC004 {
			t.Errorf("expected HL=0xC004, got 0x%04X", c.HL.Uint16())
		}
	})
}

func TestCPU_Tick(t *testing.T) {
	// NOP; LD BC, 0x1234; CALL 0x0200
	c, _ := newTestProgram(0x00, 0x01, 0x34, 0x12, 0xCD, 0x00, 0x02)

	expect := func(pc uint16, remaining uint8) {
		t.Helper()
		if err := c.Tick(); err != nil {
			t.Fatal(err)
		}
		if c.PC != pc || c.Remaining() != remaining {
			t.Errorf("expected PC=0x%04X remaining=%d, got PC=0x%04X remaining=%d", pc, remaining, c.PC, c.Remaining())
		}
	}

	expect(0x0101, 0) // NOP
	expect(0x0104, 2) // LD BC, d16
	expect(0x0104, 1)
	expect(0x0104, 0)
	expect(0x0200, 5) // CALL a16
	for i := uint8(5); i > 0; i-- {
		expect(0x0200, i-1)
	}
	if c.BC.Uint16() != 0x1234 {
		t.Errorf("expected BC=0x1234, got 0x%04X", c.BC.Uint16())
	}
	if c.Instructions() != 3 {
		t.Errorf("expected 3 instructions, got %d", c.Instructions())
	}
}

func TestCPU_Halt(t *testing.T) {
	c, _ := newTestProgram(0x76, 0x3C)
	runUntilHalted(t, c, 10)

	for i := 0; i < 100; i++ {
		if err := c.Tick(); err != nil {
			t.Fatal(err)
		}
	}
	if c.PC != 0x0101 || c.A != 0 {
		t.Errorf("expected a halted cpu to stay put, PC=0x%04X A=%d", c.PC, c.A)
	}
}

func TestCPU_Stop(t *testing.T) {
	// STOP consumes its padding byte
	c, _ := newTestProgram(0x10, 0x00, 0x3C)
	for i := 0; i < 10; i++ {
		if err := c.Tick(); err != nil {
			t.Fatal(err)
		}
	}
	if !c.Stopped() {
		t.Fatal("expected cpu to be stopped")
	}
	if c.PC != 0x0102 || c.A != 0 {
		t.Errorf("expected PC=0x0102 A=0, got PC=0x%04X A=%d", c.PC, c.A)
	}
}

func TestCPU_InterruptMasterEnable(t *testing.T) {
	t.Run("EI is delayed", func(t *testing.T) {
		c, _ := newTestProgram(0xFB, 0x00, 0x00)
		if _, err := c.Step(); err != nil {
			t.Fatal(err)
		}
		if c.IME() {
			t.Errorf("expected IME to be clear directly after EI")
		}
		if _, err := c.Step(); err != nil {
			t.Fatal(err)
		}
		if !c.IME() {
			t.Errorf("expected IME to be set after the following instruction")
		}
	})
	t.Run("DI cancels EI", func(t *testing.T) {
		c, _ := newTestProgram(0xFB, 0xF3, 0x00, 0x00)
		for i := 0; i < 4; i++ {
			if _, err := c.Step(); err != nil {
				t.Fatal(err)
			}
		}
		if c.IME() {
			t.Errorf("expected IME to be clear")
		}
	})
	t.Run("RETI", func(t *testing.T) {
		c, b := newTestProgram(0xD9)
		c.SP = 0xDFFE
		b.Write16(0xDFFE, 0x1234)
		if _, err := c.Step(); err != nil {
			t.Fatal(err)
		}
		if !c.IME() || c.PC != 0x1234 || c.SP != 0xE000 {
			t.Errorf("expected IME set and PC=0x1234, got IME=%v PC=0x%04X SP=0x%04X", c.IME(), c.PC, c.SP)
		}
	})
}

func TestCPU_IllegalOpcode(t *testing.T) {
	for _, opcode := range illegalOpcodes {
		c, _ := newTestProgram(0x00, opcode)
		if err := c.Tick(); err != nil {
			t.Fatal(err)
		}

		err := c.Tick()
		if !errors.Is(err, ErrIllegalOpcode) {
			t.Fatalf("0x%02X: expected ErrIllegalOpcode, got %v", opcode, err)
		}
		var illegal *IllegalOpcodeError
		if !errors.As(err, &illegal) {
			t.Fatalf("0x%02X: expected *IllegalOpcodeError, got %T", opcode, err)
		}
		if illegal.Opcode != opcode || illegal.Address != 0x0101 {
			t.Errorf("expected opcode 0x%02X at 0x0101, got 0x%02X at 0x%04X", opcode, illegal.Opcode, illegal.Address)
		}
		if errors.Cause(err) != ErrIllegalOpcode {
			t.Errorf("expected cause to be ErrIllegalOpcode")
		}
	}
}

func TestCPU_Debug(t *testing.T) {
	var buf bytes.Buffer
	c := NewCPU(&testBus{}, WithLogger(log.NewWithOutput(&buf, true)), Debug())
	c.b.Write(0x0100, 0x3E)
	c.b.Write(0x0101, 0x05)

	if _, err := c.Step(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "0100 LD A, $05") {
		t.Errorf("expected a trace of the instruction, got %q", buf.String())
	}
}

func TestCPU_Run(t *testing.T) {
	// LD A, 5; LD B, 3; ADD A, B; HALT
	c, _ := newTestProgram(0x3E, 0x05, 0x06, 0x03, 0x80, 0x76)
	clk := clock.New(clock.WithStallTimeout(time.Second))
	sub := clk.Subscribe()

	done := make(chan error, 1)
	go func() {
		done <- c.Run(context.Background(), sub)
	}()

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		if err := clk.Step(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if !c.Halted() || c.A != 8 {
		t.Errorf("expected a halted cpu with A=8, got halted=%v A=%d", c.Halted(), c.A)
	}
	// a halted cpu keeps acknowledging ticks
	for i := 0; i < 100; i++ {
		if err := clk.Step(ctx); err != nil {
			t.Fatal(err)
		}
	}

	clk.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil error on clock stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cpu did not return after the clock stopped")
	}
}

func TestCPU_RunFatal(t *testing.T) {
	c, _ := newTestProgram(0x00, 0xDD)
	clk := clock.New(clock.WithStallTimeout(time.Second))
	sub := clk.Subscribe()

	done := make(chan error, 1)
	go func() {
		done <- c.Run(context.Background(), sub)
	}()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := clk.Step(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrIllegalOpcode) {
			t.Errorf("expected ErrIllegalOpcode, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cpu did not return on an illegal opcode")
	}
	if clk.Subscribers() != 0 {
		t.Errorf("expected the subscription to be closed")
	}
	if err := clk.Step(ctx); err != nil {
		t.Errorf("expected the clock to keep running, got %v", err)
	}
}

func TestCPU_RunCancel(t *testing.T) {
	c, _ := newTestProgram()
	clk := clock.New()
	sub := clk.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, sub)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cpu did not return on cancellation")
	}
	if clk.Subscribers() != 0 {
		t.Errorf("expected the subscription to be closed")
	}
}
