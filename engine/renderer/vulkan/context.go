package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

// SurfaceFactory creates the window surface for an instance. The platform
// layer provides it so this package stays free of windowing code.
type SurfaceFactory func(instance vk.Instance) (uintptr, error)

type ContextConfig struct {
	ApplicationName string
	// Value of glfw.GetVulkanGetInstanceProcAddress.
	ProcAddr unsafe.Pointer
	// Instance extensions required by the window system.
	Extensions    []string
	CreateSurface SurfaceFactory
	Validation    bool
}

// Context owns the instance, the surface and the logical device with its
// single graphics queue.
type Context struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	PhysicalDevice vk.PhysicalDevice
	Device         vk.Device
	// One family does both graphics and present.
	QueueFamily   uint32
	GraphicsQueue vk.Queue

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties

	locks          *lockPool
	debugMessenger vk.DebugReportCallback
}

func NewContext(cfg ContextConfig) (*Context, error) {
	if cfg.ProcAddr == nil {
		return nil, errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(cfg.ProcAddr)
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize vk")
	}

	ctx := &Context{locks: newLockPool()}
	if err := ctx.createInstance(cfg); err != nil {
		return nil, err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := cfg.CreateSurface(ctx.Instance)
	if err == nil && surface == 0 {
		err = errors.New("null surface")
	}
	if err != nil {
		ctx.Destroy()
		return nil, errors.Wrap(err, "Vulkan surface creation failed")
	}
	ctx.Surface = vk.SurfaceFromPointer(surface)

	if err := ctx.selectPhysicalDevice(); err != nil {
		ctx.Destroy()
		return nil, err
	}
	if err := ctx.createDevice(); err != nil {
		ctx.Destroy()
		return nil, err
	}
	return ctx, nil
}

func (ctx *Context) createInstance(cfg ContextConfig) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(cfg.ApplicationName),
		PEngineName:        VulkanSafeString("Anima Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string{}, cfg.Extensions...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}
	var layers []string
	if cfg.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		layers = []string{"VK_LAYER_KHRONOS_validation"}
		if !layersAvailable(layers) {
			core.LogWarn("validation layers requested but not present, continuing without them")
			layers = nil
			extensions = extensions[:len(extensions)-1]
		}
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if err := checkResult(vk.CreateInstance(&createInfo, ctx.Allocator, &ctx.Instance), "vkCreateInstance"); err != nil {
		return err
	}
	if err := vk.InitInstance(ctx.Instance); err != nil {
		return errors.Wrap(err, "loading instance functions")
	}
	core.LogInfo("Vulkan Instance created.")

	if len(layers) > 0 {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := checkResult(vk.CreateDebugReportCallback(ctx.Instance, &debugCreateInfo, nil, &dbg), "vkCreateDebugReportCallback"); err != nil {
			return err
		}
		ctx.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func layersAvailable(required []string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return false
	}
	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if vk.ToString(available[i].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// selectPhysicalDevice picks the first device with a queue family that can
// both draw and present, swapchain support and sampler anisotropy.
// Discrete GPUs are preferred.
func (ctx *Context) selectPhysicalDevice() error {
	var count uint32
	if err := checkResult(vk.EnumeratePhysicalDevices(ctx.Instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if count == 0 {
		return errors.New("no devices which support Vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := checkResult(vk.EnumeratePhysicalDevices(ctx.Instance, &count, devices), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	selected := -1
	for i, pd := range devices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()
		properties.Limits.Deref()

		family, ok := ctx.meetsRequirements(pd)
		if !ok {
			continue
		}
		if selected >= 0 && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
			continue
		}
		selected = i
		ctx.PhysicalDevice = pd
		ctx.QueueFamily = family
		ctx.Properties = properties
		if properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			break
		}
	}
	if selected < 0 {
		return errors.New("no physical devices were found which meet the requirements")
	}

	vk.GetPhysicalDeviceMemoryProperties(ctx.PhysicalDevice, &ctx.Memory)
	ctx.Memory.Deref()

	core.LogInfo("Selected device: '%s'.", vk.ToString(ctx.Properties.DeviceName[:]))
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(ctx.Properties.ApiVersion).Major(),
		vk.Version(ctx.Properties.ApiVersion).Minor(),
		vk.Version(ctx.Properties.ApiVersion).Patch(),
	)
	return nil
}

func (ctx *Context) meetsRequirements(pd vk.PhysicalDevice) (uint32, bool) {
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &features)
	features.Deref()
	if features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return 0, false
	}

	if !hasDeviceExtension(pd, vk.KhrSwapchainExtensionName) {
		core.LogInfo("Required extension not found: '%s', skipping device.", vk.KhrSwapchainExtensionName)
		return 0, false
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)
	for i := range families {
		families[i].Deref()
		if vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit == 0 {
			continue
		}
		var present vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), ctx.Surface, &present); res != vk.Success {
			continue
		}
		if present == vk.True {
			return uint32(i), true
		}
	}
	return 0, false
}

func hasDeviceExtension(pd vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil); res != vk.Success {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if vk.ToString(available[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func (ctx *Context) createDevice() error {
	core.LogInfo("Creating logical device...")

	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: ctx.QueueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if hasDeviceExtension(ctx.PhysicalDevice, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}
	if err := checkResult(vk.CreateDevice(ctx.PhysicalDevice, &deviceCreateInfo, ctx.Allocator, &ctx.Device), "vkCreateDevice"); err != nil {
		return err
	}
	vk.GetDeviceQueue(ctx.Device, ctx.QueueFamily, 0, &ctx.GraphicsQueue)
	core.LogInfo("Logical device created.")
	return nil
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// has every requested property, or -1.
func (ctx *Context) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	for i := uint32(0); i < ctx.Memory.MemoryTypeCount; i++ {
		ctx.Memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && ctx.Memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// SupportsDepthFormat reports whether format can back an optimal tiling
// depth attachment.
func (ctx *Context) SupportsDepthFormat(format driver.Format) bool {
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(ctx.PhysicalDevice, toVkFormat(format), &properties)
	properties.Deref()
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	return properties.OptimalTilingFeatures&flags == flags
}

// Destroy releases the device, the surface and the instance. Everything
// created from the device must be gone already.
func (ctx *Context) Destroy() {
	if ctx.Device != nil {
		vk.DeviceWaitIdle(ctx.Device)
		core.LogDebug("Destroying Vulkan device...")
		vk.DestroyDevice(ctx.Device, ctx.Allocator)
		ctx.Device = nil
		ctx.GraphicsQueue = nil
	}
	if ctx.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = vk.NullSurface
	}
	if ctx.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugMessenger, ctx.Allocator)
		ctx.debugMessenger = vk.NullDebugReportCallback
	}
	if ctx.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(ctx.Instance, ctx.Allocator)
		ctx.Instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
