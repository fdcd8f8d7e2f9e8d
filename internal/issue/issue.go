// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

// Id identifies a failure phase. Every unrecoverable pipeline failure carries
// exactly one Id, which is printed as the phase label on stderr.
type Id int

const (
	NoCompatibleInterpreterId Id = iota + 1
	EnvironmentCreationFailedId
	DependencyInstallFailedId
	PackagingFailedId
	PackagingVerificationFailedId
	UnsupportedPlatformId
	DownloadFailedId
	BinaryVerificationFailedId
	ConfigLoadFailedId
	InterruptedId
)

var idNames = map[Id]string{
	NoCompatibleInterpreterId:     "NoCompatibleInterpreter",
	EnvironmentCreationFailedId:   "EnvironmentCreationFailed",
	DependencyInstallFailedId:     "DependencyInstallFailed",
	PackagingFailedId:             "PackagingFailed",
	PackagingVerificationFailedId: "PackagingVerificationFailed",
	UnsupportedPlatformId:         "UnsupportedPlatform",
	DownloadFailedId:              "DownloadFailed",
	BinaryVerificationFailedId:    "BinaryVerificationFailed",
	ConfigLoadFailedId:            "ConfigLoadFailed",
	InterruptedId:                 "Interrupted",
}

// String returns the phase label, e.g. "DependencyInstallFailed".
func (id Id) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return "Unknown"
}

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the remediation text with the given glamour style
// ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	noCompatibleInterpreterIssue = &Issue{
		id: NoCompatibleInterpreterId,
		mdMsg: `
# No compatible Python interpreter found

Every configured interpreter candidate was probed with ` + "`--version`" + ` and none
reported a version that satisfies the configured minimum.

## Things you can try
- Install a supported Python release and make sure it is on ` + "`PATH`" + `
- Add the interpreter's command name to ` + "`interpreter.candidates`" + ` in your config
- Run with ` + "`--verbose`" + ` to see why each candidate was rejected`,
		docLinks: []HttpLink{"https://www.python.org/downloads/"},
	}

	environmentCreationFailedIssue = &Issue{
		id: EnvironmentCreationFailedId,
		mdMsg: `
# Could not create the isolated environment

All environment creation strategies failed (` + "`venv --copies`" + `, ` + "`python -m virtualenv`" + `,
system ` + "`virtualenv`" + `).

## Things you can try
- Ubuntu/Debian:
~~~
$ sudo apt install python3-venv
~~~
- CentOS/RHEL:
~~~
$ sudo yum install python3-virtualenv
~~~
- macOS:
~~~
$ pip3 install virtualenv
~~~`,
	}

	dependencyInstallFailedIssue = &Issue{
		id: DependencyInstallFailedId,
		mdMsg: `
# A critical package could not be installed

The package installer failed on every retry attempt.

## Things you can try
- Check network access to the package index
- Re-run the build; transient index failures are common in CI
- Raise ` + "`dependencies.retry.max_attempts`" + ` in your config`,
	}

	packagingFailedIssue = &Issue{
		id: PackagingFailedId,
		mdMsg: `
# The packaging tool failed

The bundler exited with an error. Its captured stderr is shown above.

## Things you can try
- Look for a missing hidden import or data directory in the output
- Add the module to ` + "`packaging.hidden_imports`" + ` or ` + "`packaging.collect_data`" + ``,
		docLinks: []HttpLink{"https://pyinstaller.org/en/stable/when-things-go-wrong.html"},
	}

	packagingVerificationFailedIssue = &Issue{
		id: PackagingVerificationFailedId,
		mdMsg: `
# The packaged executable is missing or invalid

The packaging tool reported success but the expected artifact does not exist,
is empty, or could not be made executable.

## Things you can try
- Check ` + "`packaging.output_dir`" + ` and ` + "`app.name`" + `
- Make sure the output directory is writable`,
	}

	unsupportedPlatformIssue = &Issue{
		id: UnsupportedPlatformId,
		mdMsg: `
# No pre-built binary for this platform

The release does not publish a binary for the requested operating system and
architecture.

## Things you can try
- Pass ` + "`--os`" + ` and ` + "`--arch`" + ` to fetch a binary for a supported target
- Use the packaging pipeline (` + "`pybundle build`" + `) to build from source`,
	}

	downloadFailedIssue = &Issue{
		id: DownloadFailedId,
		mdMsg: `
# The binary download failed

## Things you can try
- Check network access to the release host
- Set ` + "`GITHUB_TOKEN`" + ` if you are being rate limited
- Override ` + "`fetch.release_base`" + ` to point at a mirror`,
	}

	binaryVerificationFailedIssue = &Issue{
		id: BinaryVerificationFailedId,
		mdMsg: `
# The downloaded binary failed verification

Either its checksum did not match the published value or running it with
` + "`--version`" + ` failed. The file was left on disk for inspection.

## Things you can try
- Run the binary by hand to see its error output
- Delete it and fetch again`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load the configuration

## Things you can try
- Check the CUE syntax of your config file
- Run this command to see the effective configuration:
~~~
$ pybundle config show
~~~`,
	}

	interruptedIssue = &Issue{
		id: InterruptedId,
		mdMsg: `
# Build interrupted

The run was stopped before it finished. The next run starts from a clean slate,
so you can simply run it again.`,
	}

	issues = map[Id]*Issue{
		noCompatibleInterpreterIssue.Id():     noCompatibleInterpreterIssue,
		environmentCreationFailedIssue.Id():   environmentCreationFailedIssue,
		dependencyInstallFailedIssue.Id():     dependencyInstallFailedIssue,
		packagingFailedIssue.Id():             packagingFailedIssue,
		packagingVerificationFailedIssue.Id(): packagingVerificationFailedIssue,
		unsupportedPlatformIssue.Id():         unsupportedPlatformIssue,
		downloadFailedIssue.Id():              downloadFailedIssue,
		binaryVerificationFailedIssue.Id():    binaryVerificationFailedIssue,
		configLoadFailedIssue.Id():            configLoadFailedIssue,
		interruptedIssue.Id():                 interruptedIssue,
	}
)

func Values() []*Issue {
	return slices.Collect(maps.Values(issues))
}

func Get(id Id) *Issue {
	return issues[id]
}
