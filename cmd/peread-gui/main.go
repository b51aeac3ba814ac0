// Package main provides the PERead GUI application.
package main

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/fatih/color"

	"github.com/ZacharyZcR/PERead/internal/cli"
	"github.com/ZacharyZcR/PERead/internal/pe"
)

func main() {
	// The report is rendered into a text widget.
	color.NoColor = true

	myApp := app.New()
	myWindow := myApp.NewWindow("PERead - PE文件解析工具")
	myWindow.Resize(fyne.NewSize(900, 700))

	// File path
	filePathEntry := widget.NewEntry()
	filePathEntry.SetPlaceHolder("选择PE文件...")

	// Analysis output
	analysisOutput := widget.NewMultiLineEntry()
	analysisOutput.SetPlaceHolder("分析结果将显示在这里...")
	analysisOutput.TextStyle = fyne.TextStyle{Monospace: true}
	analysisOutput.Disable()

	// Report options
	exportsCheck := widget.NewCheck("导出表", nil)
	sectionsCheck := widget.NewCheck("节区", nil)
	sectionsCheck.SetChecked(true)
	verboseCheck := widget.NewCheck("详细", nil)

	statusLabel := widget.NewLabel("就绪")

	fileButton := widget.NewButton("选择文件", func() {
		dialog.ShowFileOpen(func(file fyne.URIReadCloser, err error) {
			if err != nil || file == nil {
				return
			}
			defer func() { _ = file.Close() }()
			filePathEntry.SetText(file.URI().Path())
		}, myWindow)
	})

	analyzeButton := widget.NewButton("分析", func() {
		if filePathEntry.Text == "" {
			dialog.ShowError(fmt.Errorf("请先选择PE文件"), myWindow)
			return
		}

		opts := reportOptions{
			exports:  exportsCheck.Checked,
			sections: sectionsCheck.Checked,
			verbose:  verboseCheck.Checked,
		}
		path := filePathEntry.Text

		statusLabel.SetText("正在分析...")
		go func() {
			result, err := analyzePEFile(path, opts)
			fyne.Do(func() {
				if err != nil {
					dialog.ShowError(err, myWindow)
					statusLabel.SetText("分析失败")
					return
				}
				analysisOutput.SetText(result)
				statusLabel.SetText("分析完成")
			})
		}()
	})

	// Layout
	fileBox := container.NewBorder(nil, nil, nil, fileButton, filePathEntry)
	optionsBox := container.NewHBox(exportsCheck, sectionsCheck, verboseCheck)

	mainContent := container.NewBorder(
		container.NewVBox(
			widget.NewLabel("PE文件路径:"),
			fileBox,
			optionsBox,
			widget.NewSeparator(),
			analyzeButton,
		),
		container.NewVBox(
			widget.NewSeparator(),
			statusLabel,
		),
		nil,
		nil,
		container.NewVScroll(analysisOutput),
	)

	myWindow.SetContent(mainContent)
	myWindow.ShowAndRun()
}

type reportOptions struct {
	exports  bool
	sections bool
	verbose  bool
}

// analyzePEFile renders the same report text the CLI prints.
func analyzePEFile(filepath string, opts reportOptions) (string, error) {
	info, err := pe.AnalyzeFile(filepath, pe.Options{SkipExports: !opts.exports})
	if err != nil {
		return "", err
	}

	var output strings.Builder
	reporter := cli.NewReporter(&output, info)
	reporter.SetVerbose(opts.verbose)

	reporter.PrintHeaders()
	if opts.sections {
		reporter.PrintSections()
	}
	output.WriteString(fmt.Sprintf("\n导入表 (%d 个DLL):\n", len(info.Image.Imports)))
	reporter.PrintImports()
	if opts.exports {
		reporter.PrintExports()
	}

	return output.String(), nil
}
