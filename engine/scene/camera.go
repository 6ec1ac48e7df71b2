package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

/**
 * @brief Represents a camera looking into the scene. The view matrix is
 * rebuilt lazily after the position or rotation changed.
 */
type Camera struct {
	/** @brief The position of this camera. Use SetPosition to change it. */
	Position mgl32.Vec3
	/** @brief The rotation of this camera using Euler angles (pitch, yaw, roll). */
	EulerRotation mgl32.Vec3
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool

	viewMatrix mgl32.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.EulerRotation = mgl32.Vec3{}
	c.Position = mgl32.Vec3{}
	c.IsDirty = false
	c.viewMatrix = mgl32.Ident4()
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) SetEulerRotation(rotation mgl32.Vec3) {
	c.EulerRotation = rotation
	c.IsDirty = true
}

func (c *Camera) View() mgl32.Mat4 {
	if c.IsDirty {
		rotation := mgl32.AnglesToQuat(c.EulerRotation[0], c.EulerRotation[1], c.EulerRotation[2], mgl32.XYZ).Mat4()
		translation := mgl32.Translate3D(c.Position[0], c.Position[1], c.Position[2])

		c.viewMatrix = translation.Mul4(rotation).Inv()
		c.IsDirty = false
	}
	return c.viewMatrix
}

func (c *Camera) Forward() mgl32.Vec3 {
	view := c.View()
	return mgl32.Vec3{-view[2], -view[6], -view[10]}.Normalize()
}

func (c *Camera) Right() mgl32.Vec3 {
	view := c.View()
	return mgl32.Vec3{view[0], view[4], view[8]}.Normalize()
}

func (c *Camera) MoveForward(amount float32) {
	c.Position = c.Position.Add(c.Forward().Mul(amount))
	c.IsDirty = true
}

func (c *Camera) MoveRight(amount float32) {
	c.Position = c.Position.Add(c.Right().Mul(amount))
	c.IsDirty = true
}
