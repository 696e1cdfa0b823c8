package recording

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/miretskiy/fitsim/simulator"
)

var _ = Describe("Recorder", func() {
	var (
		dir      string
		recorder *Recorder
		sim      *simulator.Simulator
		started  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	)

	BeforeEach(func() {
		var err error
		dir = GinkgoT().TempDir()
		recorder, err = New(filepath.Join(dir, "run"), WithBatchSize(4), WithClock(func() time.Time { return started }))
		Expect(err).NotTo(HaveOccurred())

		config := simulator.DefaultConfig()
		config.TotalMemory = 1000
		sim, err = simulator.NewSimulator(config,
			simulator.WithIDGenerator(simulator.NewSequentialIDGenerator()),
			simulator.WithClock(func() time.Time { return started }),
			simulator.WithObserver(recorder),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(recorder.Close()).To(Succeed())
	})

	openReader := func() *Reader {
		Expect(recorder.Flush()).To(Succeed())
		reader, err := Open(recorder.Filename())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(reader.Close)
		return reader
	}

	It("should create the database file", func() {
		Expect(recorder.Filename()).To(Equal(filepath.Join(dir, "run.sqlite3")))
		_, err := os.Stat(recorder.Filename())
		Expect(err).NotTo(HaveOccurred())
	})

	It("should refuse to overwrite an existing recording", func() {
		_, err := New(filepath.Join(dir, "run"))
		Expect(err).To(MatchError(ContainSubstring("already exists")))
	})

	It("should record the event timeline in order", func() {
		_, err := sim.SubmitProcess(simulator.ProcessSpec{Name: "P1", Size: 100, BurstTime: 1})
		Expect(err).NotTo(HaveOccurred())
		sim.StepUntil(2)

		reader := openReader()
		events, err := reader.Events(recorder.RunID())
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(Equal(sim.Events()))
		Expect(events).To(HaveLen(4))
		Expect(events[3].Type).To(Equal(simulator.EventTypeDeallocation))
	})

	It("should record log entries oldest first", func() {
		_, err := sim.SubmitProcess(simulator.ProcessSpec{Name: "P1", Size: 100, BurstTime: 1})
		Expect(err).NotTo(HaveOccurred())
		sim.StepUntil(2)

		reader := openReader()
		logs, err := reader.Logs(recorder.RunID())
		Expect(err).NotTo(HaveOccurred())
		Expect(logs).To(HaveLen(3))

		live := sim.Logs()
		for i := range logs {
			want := live[len(live)-1-i]
			Expect(logs[i].ID).To(Equal(want.ID))
			Expect(logs[i].Message).To(Equal(want.Message))
			Expect(logs[i].Type).To(Equal(want.Type))
			Expect(logs[i].Technique).To(Equal(want.Technique))
			Expect(logs[i].Tick).To(Equal(want.Tick))
			Expect(logs[i].Timestamp.Equal(want.Timestamp)).To(BeTrue())
		}
	})

	It("should start a new run on reset", func() {
		first := recorder.RunID()
		_, err := sim.SubmitProcess(simulator.ProcessSpec{Name: "P1", Size: 100, BurstTime: 1})
		Expect(err).NotTo(HaveOccurred())
		sim.Step()

		sim.Reset()
		second := recorder.RunID()
		Expect(second).NotTo(Equal(first))

		_, err = sim.SubmitProcess(simulator.ProcessSpec{Name: "Q", Size: 10, BurstTime: 1})
		Expect(err).NotTo(HaveOccurred())

		reader := openReader()
		runs, err := reader.Runs()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(2))
		Expect(runs[0].ID).To(Equal(first))
		Expect(runs[0].Seq).To(Equal(1))
		Expect(runs[0].EventCount).To(Equal(3))
		Expect(runs[0].LogCount).To(Equal(2))
		Expect(runs[0].LastTick).To(Equal(1))
		Expect(runs[0].StartedAt.Equal(started)).To(BeTrue())
		Expect(runs[1].ID).To(Equal(second))
		Expect(runs[1].EventCount).To(Equal(0))
		Expect(runs[1].LogCount).To(Equal(1))
	})

	It("should flush on its own once the batch fills", func() {
		for i := 0; i < 5; i++ {
			_, err := sim.SubmitProcess(simulator.ProcessSpec{Name: "P", Size: 1, BurstTime: 1, ArrivalTime: 10})
			Expect(err).NotTo(HaveOccurred())
		}

		reader, err := Open(recorder.Filename())
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		logs, err := reader.Logs(recorder.RunID())
		Expect(err).NotTo(HaveOccurred())
		Expect(logs).To(HaveLen(4))
	})

	It("should accept events while another goroutine flushes", func() {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				recorder.OnEvent(simulator.SimulationEvent{Time: i, Type: simulator.EventTypeProcessArrival, ProcessName: "P"})
			}
		}()
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			for i := 0; i < 50; i++ {
				Expect(recorder.Flush()).To(Succeed())
			}
		}()
		wg.Wait()

		reader := openReader()
		events, err := reader.Events(recorder.RunID())
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(2000))
		Expect(events[1999].Time).To(Equal(1999))
	})

	It("should drop callbacks after close", func() {
		Expect(recorder.Close()).To(Succeed())
		recorder.OnEvent(simulator.SimulationEvent{Type: simulator.EventTypeProcessArrival, ProcessName: "late"})
		recorder.OnReset()
		Expect(recorder.Flush()).To(Succeed())
		Expect(recorder.Err()).NotTo(HaveOccurred())
		Expect(recorder.Close()).To(Succeed())
	})

	It("should report a missing recording", func() {
		_, err := Open(filepath.Join(dir, "nope.sqlite3"))
		Expect(err).To(HaveOccurred())
	})
})
