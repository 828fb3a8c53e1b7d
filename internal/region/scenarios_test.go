// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package region_test

import (
	"context"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/directory"
	"github.com/holomush/simscript/internal/region"
	"github.com/holomush/simscript/internal/throttle"
	"github.com/holomush/simscript/internal/world"
)

// gatedDirectory holds every lookup until release is closed.
type gatedDirectory struct {
	release chan struct{}
	inner   directory.Directory
}

func (d *gatedDirectory) LookupAgent(ctx context.Context, id ulid.ULID) (directory.Account, error) {
	select {
	case <-d.release:
	case <-ctx.Done():
		return directory.Account{}, ctx.Err()
	}
	return d.inner.LookupAgent(ctx, id)
}

type scenario struct {
	region *region.Region
	scene  *world.MemoryScene
	heard  chan world.Chat
	cancel context.CancelFunc
	done   chan struct{}
}

var origin = core.Vector{X: 128, Y: 128, Z: 20}

func newScenario(dir directory.Directory) *scenario {
	scene := world.NewMemoryScene()
	r, err := region.New(region.Config{
		Throttle: throttle.Config{Rules: map[throttle.Category]throttle.Rule{
			throttle.Chat:      {Threshold: 1000, Window: time.Second},
			throttle.AgentData: {Threshold: 1000, Window: time.Second},
		}},
		SensorResolution: 20 * time.Millisecond,
	}, region.Collaborators{Directory: dir, Scene: scene})
	Expect(err).NotTo(HaveOccurred())

	ctx, cancel := context.WithCancel(context.Background())
	s := &scenario{region: r, scene: scene, heard: r.Bus().Subscribe(), cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		r.Run(ctx)
	}()
	return s
}

func (s *scenario) stop() {
	s.region.Close()
	s.cancel()
	<-s.done
}

func (s *scenario) start(name, source string) core.ScriptRef {
	ref := core.NewScriptRef(core.NewULID())
	Expect(s.region.AddScript(region.ScriptSpec{
		Ref:      ref,
		Name:     name,
		PartName: name,
		Owner:    core.NewULID(),
		Position: origin,
		Source:   source,
		Grants:   []string{"directory.*"},
	})).To(Succeed())
	return ref
}

// avatarSays publishes chat from an avatar standing next to the scripts.
func (s *scenario) avatarSays(name string, key ulid.ULID, channel int32, message string) {
	s.region.Bus().Publish(world.Chat{
		Kind:       world.ChatSay,
		Channel:    channel,
		SenderName: name,
		SenderKey:  key,
		Message:    message,
		Origin:     origin,
	})
}

// scriptSaid returns the next line a script said on channel.
func (s *scenario) scriptSaid(channel int32) string {
	var got string
	Eventually(func() bool {
		for {
			select {
			case chat := <-s.heard:
				if chat.Channel == channel && !chat.SenderPart.IsZero() {
					got = chat.Message
					return true
				}
			default:
				return false
			}
		}
	}).WithTimeout(3 * time.Second).WithPolling(5 * time.Millisecond).Should(BeTrue())
	return got
}

// quietOn asserts no script says anything on channel for a while.
func (s *scenario) quietOn(channel int32) {
	Consistently(func() bool {
		for {
			select {
			case chat := <-s.heard:
				if chat.Channel == channel && !chat.SenderPart.IsZero() {
					return false
				}
			default:
				return true
			}
		}
	}).WithTimeout(300 * time.Millisecond).WithPolling(10 * time.Millisecond).Should(BeTrue())
}

var _ = Describe("Deferred requests", func() {
	var s *scenario
	AfterEach(func() { s.stop() })

	It("answers an unknown agent with \"0\" instead of failing", func() {
		s = newScenario(directory.NewMemory())
		s.start("asker", `
			function state_entry()
				llRequestAgentData("`+core.NewULID().String()+`", DATA_ONLINE)
			end
			function dataserver(token, data)
				llSay(7, data)
			end
		`)
		Expect(s.scriptSaid(7)).To(Equal("0"))
	})

	It("delivers the answer with the token the call returned", func() {
		alice := directory.Account{ID: core.NewULID(), Username: "alice", Online: true}
		s = newScenario(directory.NewMemory(alice))
		s.start("asker", `
			function state_entry()
				llSay(8, llRequestAgentData("`+alice.ID.String()+`", DATA_ONLINE))
			end
			function dataserver(token, data)
				llSay(7, token .. " " .. data)
			end
		`)
		token := s.scriptSaid(8)
		Expect(s.scriptSaid(7)).To(Equal(token + " 1"))
	})

	It("drops answers meant for a reset incarnation", func() {
		gate := &gatedDirectory{release: make(chan struct{}), inner: directory.NewMemory()}
		s = newScenario(gate)
		ref := s.start("asker", `
			function state_entry()
				llSay(8, llRequestAgentData("`+core.NewULID().String()+`", DATA_RATING))
			end
			function dataserver(token, data)
				llSay(7, token)
			end
		`)
		first := s.scriptSaid(8)

		Expect(s.region.ResetScript(ref)).To(Succeed())
		second := s.scriptSaid(8)
		Expect(second).NotTo(Equal(first))

		close(gate.release)
		Expect(s.scriptSaid(7)).To(Equal(second))
		s.quietOn(7)
	})
})

var _ = Describe("Listens", func() {
	var (
		s     *scenario
		alice ulid.ULID
	)
	BeforeEach(func() {
		s = newScenario(directory.NewMemory())
		alice = core.NewULID()
	})
	AfterEach(func() { s.stop() })

	It("stops hearing channel 5 once the listen is removed", func() {
		s.start("echo", `
			local handle
			function state_entry()
				handle = llListen(5, "", NULL_KEY, "")
				llSay(9, "ready")
			end
			function listen(channel, name, id, message)
				if message == "stop" then
					llListenRemove(handle)
					llSay(9, "removed")
					return
				end
				llSay(6, message)
			end
		`)
		Expect(s.scriptSaid(9)).To(Equal("ready"))

		s.avatarSays("Alice", alice, 5, "hello")
		Expect(s.scriptSaid(6)).To(Equal("hello"))

		s.avatarSays("Alice", alice, 5, "stop")
		Expect(s.scriptSaid(9)).To(Equal("removed"))

		s.avatarSays("Alice", alice, 5, "anyone?")
		s.quietOn(6)
	})

	It("delivers events in the order they were posted", func() {
		s.start("echo", `
			function state_entry()
				llListen(5, "", NULL_KEY, "")
				llSay(9, "ready")
			end
			function listen(channel, name, id, message)
				llSay(6, message)
			end
		`)
		Expect(s.scriptSaid(9)).To(Equal("ready"))

		for i := range 20 {
			s.avatarSays("Alice", alice, 5, strconv.Itoa(i))
		}
		for i := range 20 {
			Expect(s.scriptSaid(6)).To(Equal(strconv.Itoa(i)))
		}
	})

	It("matches names exactly", func() {
		s.start("picky", `
			function state_entry()
				llListen(5, "Alice", NULL_KEY, "")
				llSay(9, "ready")
			end
			function listen(channel, name, id, message)
				llSay(6, name)
			end
		`)
		Expect(s.scriptSaid(9)).To(Equal("ready"))

		s.avatarSays("Alicia", core.NewULID(), 5, "hi")
		s.avatarSays("alice", core.NewULID(), 5, "hi")
		s.avatarSays("Alice", alice, 5, "hi")
		Expect(s.scriptSaid(6)).To(Equal("Alice"))
		s.quietOn(6)
	})

	It("never hears its own part", func() {
		s.start("narcissus", `
			function state_entry()
				llListen(4, "", NULL_KEY, "")
				llSay(4, "me")
				llSay(9, "ready")
			end
			function listen(channel, name, id, message)
				llSay(6, message)
			end
		`)
		Expect(s.scriptSaid(9)).To(Equal("ready"))
		s.quietOn(6)
	})

	It("forgets listens on reset", func() {
		ref := s.start("resetter", `
			function state_entry()
				llSay(9, "ready")
			end
			function listen(channel, name, id, message)
				llSay(6, message)
			end
			llListen(5, "", NULL_KEY, "")
		`)
		Expect(s.scriptSaid(9)).To(Equal("ready"))
		Expect(s.region.Stats().Listens).To(Equal(1))

		s.avatarSays("Alice", alice, 5, "before")
		Expect(s.scriptSaid(6)).To(Equal("before"))

		Expect(s.region.ResetScript(ref)).To(Succeed())
		Expect(s.scriptSaid(9)).To(Equal("ready"))
		Eventually(func() int { return s.region.Stats().Listens }).Should(Equal(1))
	})
})

var _ = Describe("Script lifecycle", func() {
	var s *scenario
	BeforeEach(func() { s = newScenario(directory.NewMemory()) })
	AfterEach(func() { s.stop() })

	It("restarts from state_entry on llResetScript", func() {
		s.start("counter", `
			count = (count or 0) + 1
			function state_entry()
				llSay(9, tostring(count))
				llListen(5, "", NULL_KEY, "")
			end
			function listen(channel, name, id, message)
				llResetScript()
				llSay(6, "unreachable")
			end
		`)
		Expect(s.scriptSaid(9)).To(Equal("1"))

		s.avatarSays("Alice", core.NewULID(), 5, "reset")
		Expect(s.scriptSaid(9)).To(Equal("1"), "globals do not survive a reset")
		s.quietOn(6)
	})

	It("reports handler errors on DEBUG_CHANNEL and keeps running", func() {
		s.start("clumsy", `
			function state_entry()
				llListen(5, "", NULL_KEY, "")
				error("boom")
			end
			function listen(channel, name, id, message)
				llSay(6, message)
			end
		`)
		Expect(s.scriptSaid(world.DebugChannel)).To(ContainSubstring("boom"))

		s.avatarSays("Alice", core.NewULID(), 5, "still here")
		Expect(s.scriptSaid(6)).To(Equal("still here"))
	})

	It("reports sensor sweeps", func() {
		bob := world.Entity{Key: core.NewULID(), Name: "Bob", Type: world.TypeAgent, Pos: core.Vector{X: 130, Y: 128, Z: 20}}
		s.scene.Put(bob)
		s.start("watcher", `
			function state_entry()
				llSensor("", NULL_KEY, AGENT, 10, PI)
			end
			function sensor(n)
				llSay(6, n .. " " .. llDetectedName(0) .. " " .. llDetectedKey(0))
			end
		`)
		Expect(s.scriptSaid(6)).To(Equal("1 Bob " + bob.Key.String()))
	})

	It("reports no_sensor when nothing is in range", func() {
		s.start("watcher", `
			function state_entry()
				llSensor("", NULL_KEY, AGENT, 10, PI)
			end
			function no_sensor()
				llSay(6, "nobody")
			end
		`)
		Expect(s.scriptSaid(6)).To(Equal("nobody"))
	})
})
