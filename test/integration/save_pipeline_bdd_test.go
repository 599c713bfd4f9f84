//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/alias"
	"github.com/eliteGoblin/focusd/replay_mon/internal/clock"
	"github.com/eliteGoblin/focusd/replay_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/replay_mon/internal/infra"
	"github.com/eliteGoblin/focusd/replay_mon/internal/naming"
	"github.com/eliteGoblin/focusd/replay_mon/internal/placement"
	"github.com/eliteGoblin/focusd/replay_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/replay_mon/test/fixtures"
)

const gamePath = "/opt/games/quake/quake.x86_64"

type fixedForeground struct{ id domain.ProgramIdentity }

func (f fixedForeground) ForegroundProgram() (domain.ProgramIdentity, error) { return f.id, nil }

type activeUser struct{}

func (activeUser) IdleSeconds() (int, error) { return 0, nil }

var _ = Describe("Save pipeline", func() {
	var (
		folder *fixtures.ReplayFolder
		ledger *infra.EncryptedLedger
		status domain.StatusStore
		cancel context.CancelFunc
		done   chan error
	)

	BeforeEach(func() {
		tmpDir, err := os.MkdirTemp("", "replaymon-integration-*")
		Expect(err).NotTo(HaveOccurred())
		folder = fixtures.NewReplayFolder(tmpDir)
		Expect(folder.Create()).To(Succeed())

		dataDir := filepath.Join(tmpDir, "data")
		ledger, err = infra.OpenLedger(dataDir)
		Expect(err).NotTo(HaveOccurred())
		status = infra.NewStatusFile(dataDir)

		logger := zap.NewNop()
		clk := clock.NewRealClock()

		aliases := alias.NewStore()
		Expect(aliases.Rebuild([]string{alias.FormatEntry("/opt/games/quake", "Quake")})).To(Succeed())

		host := infra.NewCommandHost(infra.HostConfig{
			SaveCommand:      []string{"true"},
			StartCommand:     []string{"true"},
			StopCommand:      []string{"true"},
			SceneName:        "Gaming",
			RetentionSeconds: 60,
		}, clk, logger)

		foreground := fixedForeground{id: domain.ProgramIdentity(gamePath)}
		gate := usecase.NewForceModeGate()
		saver := usecase.NewClipSaver(
			naming.NewResolver(foreground, host, aliases, logger),
			placement.NewAssigner(infra.NewFileSystemManager(), logger),
			gate,
			ledger,
			infra.NewLogNotifier(domain.DisplayFullPath, logger),
			clk,
			usecase.SaverConfig{
				Mode:         domain.NamingCurrentProcess,
				Template:     "%NAME",
				BasePath:     folder.LibraryDir(),
				SaveToFolder: true,
				Links:        placement.LinkOptions{Enabled: true, Folder: filepath.Join(folder.LibraryDir(), "_links")},
			},
			logger,
		)

		exec := daemon.DetachedExecutor{}
		scheduler := daemon.NewRestartScheduler(0, host, activeUser{}, host, exec, clk, logger)

		cfg := daemon.DefaultSessionConfig()
		cfg.SampleInterval = 10 * time.Millisecond
		cfg.RestartAfterSave = false

		events := make(chan domain.CaptureEvent, 16)
		session := daemon.NewSession(cfg, events, foreground, host, host, saver, gate, scheduler, exec, status, clk, logger)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		host.SetListener(func(ev domain.CaptureEvent) { events <- ev })

		watcher := infra.NewReplayWatcher(infra.WatcherConfig{
			Dir:    folder.RawDir(),
			Prefix: "Replay",
			Settle: 100 * time.Millisecond,
		}, logger)

		done = make(chan error, 1)
		go func() { done <- session.Run(ctx) }()
		go func() { _ = watcher.Run(ctx, events) }()

		Expect(host.Start(ctx)).To(Succeed())
		// Let the watcher register the folder
		time.Sleep(200 * time.Millisecond)
	})

	AfterEach(func() {
		cancel()
		Eventually(done, 5*time.Second).Should(Receive())
		ledger.Close()
		folder.Cleanup()
	})

	Context("when the host writes a replay", func() {
		It("should name it after the aliased game and move it into the game folder", func() {
			_, err := folder.WriteClip("Replay 2024-01-02 13-04-05.mkv")
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() []string { return folder.Files("Quake") }, 5*time.Second, 50*time.Millisecond).
				Should(Equal([]string{"Quake.mkv"}))
			Expect(folder.RawFiles()).To(BeEmpty())
			Expect(folder.Files("_links")).To(Equal([]string{"Quake.mkv"}))
		})

		It("should never overwrite an earlier clip", func() {
			_, err := folder.WriteClip("Replay 1.mkv")
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() []string { return folder.Files("Quake") }, 5*time.Second, 50*time.Millisecond).
				Should(HaveLen(1))

			_, err = folder.WriteClip("Replay 2.mkv")
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() []string { return folder.Files("Quake") }, 5*time.Second, 50*time.Millisecond).
				Should(Equal([]string{"Quake (1).mkv", "Quake.mkv"}))
		})

		It("should record the clip in the encrypted ledger", func() {
			_, err := folder.WriteClip("Replay 1.mkv")
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() int {
				clips, err := ledger.Recent(10)
				Expect(err).NotTo(HaveOccurred())
				return len(clips)
			}, 5*time.Second, 50*time.Millisecond).Should(Equal(1))

			clips, _ := ledger.Recent(1)
			Expect(clips[0].BaseName).To(Equal("Quake"))
			Expect(clips[0].TargetPath).To(Equal(filepath.Join(folder.LibraryDir(), "Quake", "Quake.mkv")))
		})
	})

	Context("when the host writes an unrelated file", func() {
		It("should leave it alone", func() {
			_, err := folder.WriteClip("Recording 1.mkv")
			Expect(err).NotTo(HaveOccurred())

			Consistently(folder.RawFiles, 500*time.Millisecond, 50*time.Millisecond).
				Should(Equal([]string{"Recording 1.mkv"}))
		})
	})

	Context("while the session runs", func() {
		It("should publish a status snapshot", func() {
			Eventually(func() bool {
				st, err := status.Read()
				return err == nil && st != nil && st.SessionActive
			}, 5*time.Second, 50*time.Millisecond).Should(BeTrue())
		})
	})
})
