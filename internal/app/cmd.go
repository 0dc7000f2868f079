package app

import (
	"io"

	"github.com/spf13/cobra"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモード（再送とクリーンアップ）で起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandSubmit は1単語をCLIから送信することを示す。
	CommandSubmit Command = "submit"
	// CommandProbe はログイン状態をCLIから確認することを示す。
	CommandProbe Command = "probe"
	// CommandAttach は例文をCLIから追加することを示す。
	CommandAttach Command = "attach"
)

// NewRootCommand はwordsyncのcobraコマンドツリーを生成する。
// 引数なしで起動した場合はserveとして動作する。wはログの出力先。
func NewRootCommand(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "wordsync",
		Short:         "Sync captured words to vocabulary platforms",
		Long:          `wordsync は選択した英単語を扇贝・不背单词・墨墨・百词斩の単語帳に同期する。`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	root.AddCommand(
		newServeCommand(w),
		newWorkerCommand(w),
		newMigrateCommand(w),
		newHealthcheckCommand(),
		newSubmitCommand(w),
		newProbeCommand(w),
		newAttachCommand(w),
	)
	return root
}

func newServeCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   string(CommandServe),
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func newWorkerCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   string(CommandWorker),
		Short: "Monitor platform sessions and clean up old history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			return runWorker(cmd.Context(), cfg)
		},
	}
}

func newMigrateCommand(w io.Writer) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   string(CommandMigrate),
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			return runMigrate(cfg, down)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Roll back the most recent migration")
	return cmd
}

// newHealthcheckCommand はhealthcheckサブコマンドを生成する。
// 軽量サブコマンドのため、フル初期化をスキップする。
func newHealthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Check the local API server's /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthcheck(serverPort())
		},
	}
}

func newSubmitCommand(w io.Writer) *cobra.Command {
	var platformName string
	cmd := &cobra.Command{
		Use:   string(CommandSubmit) + " <word>",
		Short: "Submit a word to the active (or given) platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			return runSubmit(cmd.Context(), cfg, cmd.OutOrStdout(), args[0], platformName)
		},
	}
	cmd.Flags().StringVarP(&platformName, "platform", "p", "", "Target platform (shanbay, bbdc, momo, baicizhan)")
	return cmd
}

func newProbeCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   string(CommandProbe) + " [platform]",
		Short: "Report whether each platform's session is authenticated",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			var platformName string
			if len(args) > 0 {
				platformName = args[0]
			}
			return runProbe(cmd.Context(), cfg, cmd.OutOrStdout(), platformName)
		},
	}
}

func newAttachCommand(w io.Writer) *cobra.Command {
	var sentence, translation string
	cmd := &cobra.Command{
		Use:   string(CommandAttach) + " <word>...",
		Short: "Attach an example sentence to words on momo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			return runAttach(cmd.Context(), cfg, cmd.OutOrStdout(), args, sentence, translation)
		},
	}
	cmd.Flags().StringVarP(&sentence, "sentence", "s", "", "Example sentence")
	cmd.Flags().StringVarP(&translation, "translation", "t", "", "Translation (translated automatically when empty and ANTHROPIC_API_KEY is set)")
	cmd.MarkFlagRequired("sentence")
	return cmd
}
