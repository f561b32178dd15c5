package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newsflow/variantpad/internal/config"
	"github.com/newsflow/variantpad/internal/fetcher"
	"github.com/newsflow/variantpad/internal/logging"
	"github.com/newsflow/variantpad/internal/processor"
	"github.com/newsflow/variantpad/internal/resolver"
	"github.com/newsflow/variantpad/internal/service"
	"github.com/newsflow/variantpad/internal/storage"
)

var (
	targetURL  string
	variant    string
	width      int
	height     int
	background string
	outputFile string
	listOnly   bool
	store      bool
	logLevel   string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "variantpad",
		Short: "variantpad - 商品变体图片抓取与宽屏填充工具",
		Long: `variantpad 抓取商品页面，按变体分组图片，
将选中变体的图片居中填充到固定画布并打包为 zip。`,
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&targetURL, "url", "u", "", "商品页面 URL")
	rootCmd.Flags().StringVarP(&variant, "variant", "v", "", "变体 ID 或名称，all 表示全部图片（不指定则交互选择）")
	rootCmd.Flags().IntVar(&width, "width", 0, "画布宽度 (默认读取 PAD_WIDTH)")
	rootCmd.Flags().IntVar(&height, "height", 0, "画布高度 (默认读取 PAD_HEIGHT)")
	rootCmd.Flags().StringVar(&background, "bg", "", "背景色 #RRGGBB (默认读取 BACKGROUND_COLOR)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", processor.ArchiveName, "输出 zip 文件路径")
	rootCmd.Flags().BoolVarP(&listOnly, "list", "l", false, "只列出变体，不处理图片")
	rootCmd.Flags().BoolVar(&store, "store", false, "上传到归档存储并输出下载地址")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "warn", "日志级别")

	rootCmd.MarkFlagRequired("url")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		color.Red("[-] 加载配置失败: %v", err)
		return err
	}

	logger, err := logging.New(logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		color.Red("[-] 初始化抓取器失败: %v", err)
		return err
	}
	defer f.Close()

	opts := service.OptionsFromConfig(cfg)
	opts.Fetcher = f
	opts.Logger = logger
	if store {
		if !cfg.Archive.Enabled() {
			color.Red("[-] 未配置归档存储 (ARCHIVE_S3_ENDPOINT / ARCHIVE_S3_BUCKET)")
			return fmt.Errorf("archive store is not configured")
		}
		s3, err := storage.NewS3Store(cfg.Archive)
		if err != nil {
			color.Red("[-] 初始化归档存储失败: %v", err)
			return err
		}
		opts.Store = s3
	}
	svc := service.New(opts)

	color.Green("[+] 开始抓取: %s", targetURL)
	scraped, err := svc.Scrape(ctx, targetURL)
	if err != nil {
		color.Red("[-] %v", err)
		return err
	}

	if scraped.Empty() {
		color.Yellow("[!] %s", scraped.Status)
		return nil
	}

	color.Cyan("[*] %s (strategy=%s, product=%s)", scraped.Status, scraped.Strategy, orNone(scraped.ProductSource))
	printSelections(os.Stdout, scraped.Selections)

	if listOnly {
		return nil
	}

	selection := variant
	if selection == "" {
		selection, err = promptSelection(os.Stdin, os.Stdout, scraped.Selections)
		if err != nil {
			color.Red("[-] %v", err)
			return err
		}
	}

	req := service.ProcessRequest{
		URL:       targetURL,
		Selection: selection,
		Pad: processor.PadOptions{
			Width:           width,
			Height:          height,
			BackgroundColor: background,
		},
		Store: store,
	}

	result, err := svc.ProcessSelection(ctx, scraped, req, func(p processor.Progress) {
		color.Cyan("[*] %s", p.Message)
	})
	if err != nil {
		color.Red("[-] %v", err)
		return err
	}

	for _, failure := range result.Report.Failures {
		color.Yellow("[!] 第 %d 张图片失败: %s (%s)", failure.Index+1, failure.Error, failure.URL)
	}

	if result.Archive == nil {
		color.Red("[-] %s", result.Status)
		return fmt.Errorf("no images could be processed")
	}

	if err := os.WriteFile(outputFile, result.Archive, 0o644); err != nil {
		color.Red("[-] 写入文件失败: %v", err)
		return err
	}

	color.Green("[+] %s", result.Status)
	color.Green("[+] 已保存: %s", outputFile)
	if result.ArchiveURL != "" {
		color.Green("[+] 下载地址: %s", result.ArchiveURL)
	}
	logger.Debug("done", zap.Duration("duration", result.Report.Duration))
	return nil
}

func printSelections(w io.Writer, sels []resolver.Selection) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "ID", "变体", "图片数"})
	table.SetAutoWrapText(false)

	for i, s := range sels {
		table.Append([]string{
			strconv.Itoa(i + 1),
			s.ID,
			s.Label,
			strconv.Itoa(len(s.Images)),
		})
	}
	table.Render()
}

// promptSelection 交互选择，接受序号、ID 或变体名
func promptSelection(in io.Reader, out io.Writer, sels []resolver.Selection) (string, error) {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "选择变体 [1-%d]（回车选择全部）: ", len(sels))
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			if id, ok := matchSelection(sels, line); ok {
				return id, nil
			}
			fmt.Fprintf(out, "无效选择: %s\n", line)
		} else if err == nil {
			return resolver.AllID, nil
		}
		if err != nil {
			if err == io.EOF && line == "" {
				return resolver.AllID, nil
			}
			return "", fmt.Errorf("read selection: %w", err)
		}
	}
}

func matchSelection(sels []resolver.Selection, input string) (string, bool) {
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(sels) {
		return sels[n-1].ID, true
	}
	for _, s := range sels {
		if s.ID == input || (s.Name != "" && strings.EqualFold(s.Name, input)) {
			return s.ID, true
		}
	}
	return "", false
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
